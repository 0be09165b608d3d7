package session

import "testing"

// FuzzSessionDecode exercises the binary session decoder with arbitrary inputs.
func FuzzSessionDecode(f *testing.F) {
	sess := &Session{
		Username:  "alice",
		Level:     LevelPasswordVerified,
		CreatedAt: 1700000000,
		ExpiresAt: 1700086400,
	}
	encoded, err := Encode(sess)
	if err == nil {
		f.Add(encoded)
	}

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{1, 9})
	f.Add([]byte{255, 255, 255})

	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}
		again, err := Encode(s)
		if err != nil {
			t.Fatalf("decoded session failed to re-encode: %v", err)
		}
		if string(again) != string(data) {
			t.Fatal("decode/encode is not stable")
		}
	})
}
