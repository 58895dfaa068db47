package protocol

import "testing"

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		em   *ErrorMessage
		want string
	}{
		{"plain", NewError(ErrHostFailure, "cannot insert"), "HostFailure: cannot insert"},
		{"with key", &ErrorMessage{Code: ErrUnknownKey, Key: "elem_1", Message: "no such element"}, "UnknownKey: no such element (elem_1)"},
		{"fatal", NewFatalError(ErrVersion, "want 1"), "fatal: Version: want 1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.em.Error(); got != tc.want {
				t.Errorf("Error() = %q, want %q", got, tc.want)
			}
			decoded, err := DecodeErrorMessage(EncodeErrorMessage(tc.em))
			if err != nil {
				t.Fatal(err)
			}
			if *decoded != *tc.em {
				t.Errorf("decoded = %+v, want %+v", decoded, tc.em)
			}
		})
	}
}

func TestErrorCodeString(t *testing.T) {
	if got := ErrorCode(0x7777).String(); got != "Unknown" {
		t.Errorf("String() = %q, want Unknown", got)
	}
}
