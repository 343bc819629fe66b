package engine

import (
	"io"
	"slices"
	"testing"
	"time"
)

const testTimeout = 50 * time.Millisecond

func collect(rr *ResponseReader) []string {
	var lines []string
	for line := range rr.Lines() {
		lines = append(lines, line)
	}
	return lines
}

func TestResponseReader_YieldsLinesInOrder(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	rr := NewResponseReader(pr, testTimeout)

	go func() {
		io.WriteString(pw, "line one\n")
		io.WriteString(pw, "line two\n")
		io.WriteString(pw, "line three\n")
	}()

	got := collect(rr)
	want := []string{"line one", "line two", "line three"}
	if !slices.Equal(got, want) {
		t.Errorf("Lines() = %v, want %v", got, want)
	}
}

func TestResponseReader_TerminatesWithinOneTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	rr := NewResponseReader(pr, testTimeout)

	io.WriteString(pw, "only line\n")

	start := time.Now()
	got := collect(rr)
	elapsed := time.Since(start)

	if len(got) != 1 || got[0] != "only line" {
		t.Fatalf("Lines() = %v, want [only line]", got)
	}
	// One timeout of silence ends the sequence; allow generous scheduling slack.
	if elapsed > 5*testTimeout {
		t.Errorf("sequence took %v to terminate, want about %v", elapsed, testTimeout)
	}
}

func TestResponseReader_EmptyOnSilence(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	rr := NewResponseReader(pr, testTimeout)

	if got := collect(rr); len(got) != 0 {
		t.Errorf("Lines() on a quiet stream = %v, want none", got)
	}
	if rr.Closed() {
		t.Error("timeout must not mark the reader closed")
	}
}

func TestResponseReader_EndsAtEOF(t *testing.T) {
	pr, pw := io.Pipe()

	rr := NewResponseReader(pr, time.Hour) // EOF must end the sequence, not the timeout

	io.WriteString(pw, "final\n")
	pw.Close()

	got := collect(rr)
	if !slices.Equal(got, []string{"final"}) {
		t.Errorf("Lines() = %v, want [final]", got)
	}
	if !rr.Closed() {
		t.Error("reader should report closed after EOF")
	}

	// A later invocation ends immediately rather than waiting out the timeout.
	start := time.Now()
	if got := collect(rr); len(got) != 0 {
		t.Errorf("Lines() after EOF = %v, want none", got)
	}
	if time.Since(start) > testTimeout {
		t.Error("Lines() after EOF should return immediately")
	}
}

func TestResponseReader_PartialLineAtEOF(t *testing.T) {
	pr, pw := io.Pipe()

	rr := NewResponseReader(pr, testTimeout)

	io.WriteString(pw, "complete\npartial")
	pw.Close()

	got := collect(rr)
	want := []string{"complete", "partial"}
	if !slices.Equal(got, want) {
		t.Errorf("Lines() = %v, want %v", got, want)
	}
}

func TestResponseReader_RestartableAcrossInvocations(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	rr := NewResponseReader(pr, testTimeout)

	io.WriteString(pw, "first response\n")
	if got := collect(rr); !slices.Equal(got, []string{"first response"}) {
		t.Fatalf("first invocation = %v, want [first response]", got)
	}

	// The next invocation continues from the same stream.
	io.WriteString(pw, "second response\n")
	if got := collect(rr); !slices.Equal(got, []string{"second response"}) {
		t.Errorf("second invocation = %v, want [second response]", got)
	}
}

func TestResponseReader_LateLineDeliveredToNextInvocation(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	rr := NewResponseReader(pr, testTimeout)

	// Nothing arrives during the first invocation.
	if got := collect(rr); len(got) != 0 {
		t.Fatalf("first invocation = %v, want none", got)
	}

	// A line that arrives afterwards is not lost.
	io.WriteString(pw, "delayed\n")
	if got := collect(rr); !slices.Equal(got, []string{"delayed"}) {
		t.Errorf("second invocation = %v, want [delayed]", got)
	}
}

func TestResponseReader_StripsCarriageReturns(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	rr := NewResponseReader(pr, testTimeout)

	io.WriteString(pw, "crlf line\r\n")

	if got := collect(rr); !slices.Equal(got, []string{"crlf line"}) {
		t.Errorf("Lines() = %v, want [crlf line]", got)
	}
}
