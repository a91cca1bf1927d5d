package kafka

import (
	"testing"

	"github.com/IBM/sarama"
)

func TestLogNameFromTopic(t *testing.T) {
	tests := []struct {
		name   string
		topic  string
		prefix string
		want   string
	}{
		{
			name:   "prefixed topic",
			topic:  "streamalert.data.cloudtrail",
			prefix: "streamalert.data.",
			want:   "cloudtrail",
		},
		{
			name:   "unprefixed topic passes through",
			topic:  "cloudtrail",
			prefix: "streamalert.data.",
			want:   "cloudtrail",
		},
		{
			name:   "empty prefix",
			topic:  "osquery_differential",
			prefix: "",
			want:   "osquery_differential",
		},
		{
			name:   "prefix only strips once",
			topic:  "streamalert.data.streamalert.data.x",
			prefix: "streamalert.data.",
			want:   "streamalert.data.x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LogNameFromTopic(tt.topic, tt.prefix); got != tt.want {
				t.Errorf("LogNameFromTopic() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOffsetInitial(t *testing.T) {
	tests := []struct {
		name  string
		reset string
		want  int64
	}{
		{"earliest", "earliest", sarama.OffsetOldest},
		{"latest", "latest", sarama.OffsetNewest},
		{"unknown defaults to latest", "bogus", sarama.OffsetNewest},
		{"empty defaults to latest", "", sarama.OffsetNewest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := offsetInitial(tt.reset); got != tt.want {
				t.Errorf("offsetInitial(%q) = %v, want %v", tt.reset, got, tt.want)
			}
		})
	}
}

func TestConfigureSecurity(t *testing.T) {
	tests := []struct {
		name    string
		config  ConsumerConfig
		wantErr bool
	}{
		{
			name:    "plaintext",
			config:  ConsumerConfig{SecurityProtocol: "PLAINTEXT"},
			wantErr: false,
		},
		{
			name:    "ssl",
			config:  ConsumerConfig{SecurityProtocol: "SSL"},
			wantErr: false,
		},
		{
			name: "sasl plain",
			config: ConsumerConfig{
				SecurityProtocol: "SASL_PLAINTEXT",
				SASLMechanism:    "PLAIN",
				SASLUsername:     "user",
				SASLPassword:     "pass",
			},
			wantErr: false,
		},
		{
			name: "sasl scram sha512 over tls",
			config: ConsumerConfig{
				SecurityProtocol: "SASL_SSL",
				SASLMechanism:    "SCRAM-SHA-512",
				SASLUsername:     "user",
				SASLPassword:     "pass",
			},
			wantErr: false,
		},
		{
			name: "msk iam",
			config: ConsumerConfig{
				SecurityProtocol: "SASL_SSL",
				SASLMechanism:    "AWS_MSK_IAM",
				AWSRegion:        "us-east-1",
			},
			wantErr: false,
		},
		{
			name: "unsupported mechanism",
			config: ConsumerConfig{
				SecurityProtocol: "SASL_SSL",
				SASLMechanism:    "GSSAPI",
			},
			wantErr: true,
		},
		{
			name:    "unsupported protocol",
			config:  ConsumerConfig{SecurityProtocol: "KERBEROS"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saramaConfig := sarama.NewConfig()
			err := configureSecurity(saramaConfig, tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("configureSecurity() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigureSecurity_TLSEnabled(t *testing.T) {
	saramaConfig := sarama.NewConfig()
	err := configureSecurity(saramaConfig, ConsumerConfig{
		SecurityProtocol: "SASL_SSL",
		SASLMechanism:    "SCRAM-SHA-256",
		SASLUsername:     "user",
		SASLPassword:     "pass",
	})
	if err != nil {
		t.Fatalf("configureSecurity() error = %v", err)
	}

	if !saramaConfig.Net.SASL.Enable {
		t.Error("SASL should be enabled")
	}
	if !saramaConfig.Net.TLS.Enable {
		t.Error("TLS should be enabled for SASL_SSL")
	}
	if saramaConfig.Net.SASL.Mechanism != sarama.SASLTypeSCRAMSHA256 {
		t.Errorf("mechanism = %v, want %v", saramaConfig.Net.SASL.Mechanism, sarama.SASLTypeSCRAMSHA256)
	}
}
