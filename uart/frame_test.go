package uart

import (
	"bytes"
	"testing"
)

func collect(t *testing.T, out chan []byte) []byte {
	select {
	case f := <-out:
		return f
	default:
		t.Fatal("no frame assembled")
		return nil
	}
}

func Test_Assembler_WholeFrame(t *testing.T) {
	out := make(chan []byte, 4)
	a := newAssembler(out)

	f := appendFrame(opConnected, []byte{7, 0, 1, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff})
	a.assemble(f)

	if got := collect(t, out); !bytes.Equal(got, f) {
		t.Fatalf("got % 0x want % 0x", got, f)
	}
}

func Test_Assembler_SplitReads(t *testing.T) {
	out := make(chan []byte, 4)
	a := newAssembler(out)

	f := appendFrame(opDisconnected, []byte{7, 0, 0x13})
	for i := range f {
		a.assemble(f[i : i+1])
	}

	if got := collect(t, out); !bytes.Equal(got, f) {
		t.Fatalf("got % 0x want % 0x", got, f)
	}
}

func Test_Assembler_GarbageBeforeStart(t *testing.T) {
	out := make(chan []byte, 4)
	a := newAssembler(out)

	f := appendFrame(opScanStart, nil)
	in := append([]byte{0x00, 0x42, 0x99}, f...)
	a.assemble(in)

	if got := collect(t, out); !bytes.Equal(got, f) {
		t.Fatalf("got % 0x want % 0x", got, f)
	}
}

func Test_Assembler_TwoFramesOneRead(t *testing.T) {
	out := make(chan []byte, 4)
	a := newAssembler(out)

	f1 := appendFrame(opAdvertiseStart, nil)
	f2 := appendFrame(opDisconnected, []byte{1, 0, 0})
	a.assemble(append(append([]byte{}, f1...), f2...))

	if got := collect(t, out); !bytes.Equal(got, f1) {
		t.Fatalf("first frame % 0x", got)
	}
	if got := collect(t, out); !bytes.Equal(got, f2) {
		t.Fatalf("second frame % 0x", got)
	}
}

func Test_Assembler_FrameSpillsIntoNext(t *testing.T) {
	out := make(chan []byte, 4)
	a := newAssembler(out)

	f1 := appendFrame(opDisconnected, []byte{1, 0, 0x16})
	f2 := appendFrame(opScanStart, nil)
	in := append(append([]byte{}, f1...), f2...)

	a.assemble(in[:5])
	a.assemble(in[5:])

	if got := collect(t, out); !bytes.Equal(got, f1) {
		t.Fatalf("first frame % 0x", got)
	}
	if got := collect(t, out); !bytes.Equal(got, f2) {
		t.Fatalf("second frame % 0x", got)
	}
}
