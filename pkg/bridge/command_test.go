package bridge

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/vbridge/pkg/vdom"
)

func TestCommandFor(t *testing.T) {
	v := vdom.MustH("a#home.nav", &vdom.Data{
		Attrs: map[string]string{"href": "/"},
		Class: map[string]bool{"active": true},
		Style: map[string]string{"color": "red"},
		Props: map[string]any{"tabIndex": 1},
	}, "hi")
	v.Handle = &vdom.Handle{ID: "elem_1"}

	got := CommandFor(OpCreate, v)
	want := Command{
		Op:    OpCreate,
		Key:   "elem_1",
		Tag:   "a",
		Text:  "hi",
		Attrs: map[string]string{"id": "home", "href": "/"},
		Class: map[string]bool{"nav": true, "active": true},
		Style: map[string]string{"color": "red"},
		Props: map[string]any{"tabIndex": 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CommandFor mismatch (-want +got):\n%s", diff)
	}
}

func TestCommandForText(t *testing.T) {
	v := vdom.Text("hello")
	v.Handle = &vdom.Handle{ID: "t1"}

	got := CommandFor(OpCreate, v)
	if got.Tag != "" || got.Text != "hello" || got.Attrs != nil {
		t.Errorf("text command = %+v", got)
	}
}

func TestMarshalCommand(t *testing.T) {
	cmd := Command{Op: OpUpdate, Key: "elem_1", Tag: "a", Text: "bye", OldText: "hi"}
	data, err := MarshalCommand(cmd)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"op":"update","key":"elem_1","tag":"a","text":"bye","oldText":"hi"}`
	if string(data) != want {
		t.Errorf("MarshalCommand = %s, want %s", data, want)
	}

	back, err := UnmarshalCommand(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cmd, back); diff != "" {
		t.Errorf("UnmarshalCommand mismatch (-want +got):\n%s", diff)
	}
}
