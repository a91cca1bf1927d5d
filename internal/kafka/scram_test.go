package kafka

import "testing"

func TestXDGSCRAMClient_Begin(t *testing.T) {
	tests := []struct {
		name string
		hash func() *XDGSCRAMClient
	}{
		{
			name: "sha256",
			hash: func() *XDGSCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA256()} },
		},
		{
			name: "sha512",
			hash: func() *XDGSCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA512()} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := tt.hash()
			if err := client.Begin("user", "password", ""); err != nil {
				t.Fatalf("Begin() error = %v", err)
			}
			if client.Done() {
				t.Error("conversation should not be done before any step")
			}

			// First step produces the client-first message
			response, err := client.Step("")
			if err != nil {
				t.Fatalf("Step() error = %v", err)
			}
			if response == "" {
				t.Error("expected non-empty client-first message")
			}
		})
	}
}
