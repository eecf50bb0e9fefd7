package iso7816

import (
	"testing"
)

func TestManageChannel(t *testing.T) {
	open, err := OpenChannel().Hex()
	if err != nil {
		t.Fatalf("OpenChannel().Hex() failed: %v", err)
	}
	if open != "0070000001" {
		t.Errorf("OpenChannel() = %s, want 0070000001", open)
	}

	for _, tt := range []struct {
		channel  uint8
		expected string
	}{
		{1, "01708001"},
		{3, "03708003"},
		{5, "41708005"},
	} {
		cls, _ := ChannelClass(tt.channel)
		got, err := CloseChannel(cls).Hex()
		if err != nil {
			t.Fatalf("CloseChannel(%d).Hex() failed: %v", tt.channel, err)
		}
		if got != tt.expected {
			t.Errorf("CloseChannel(%d) = %s, want %s", tt.channel, got, tt.expected)
		}
	}
}

func TestAssignedChannel(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    uint8
		wantErr bool
	}{
		{"Channel 1", []byte{0x01}, 1, false},
		{"Channel 19", []byte{0x13}, 19, false},
		{"Basic channel", []byte{0x00}, 0, true},
		{"Out of range", []byte{0x14}, 0, true},
		{"Empty", nil, 0, true},
		{"Too long", []byte{0x01, 0x02}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AssignedChannel(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AssignedChannel(%X) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("AssignedChannel(%X) = %d, want %d", tt.data, got, tt.want)
			}
		})
	}
}
