package services_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/MegaGrindStone/streamchat/internal/models"
	"github.com/MegaGrindStone/streamchat/internal/services"
	"github.com/google/go-cmp/cmp"
)

// chunkReader returns its input in the given chunks, one chunk per Read call.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func collect(t *testing.T, r io.Reader) ([]models.Event, error) {
	t.Helper()

	var events []models.Event
	for event, err := range services.DecodeStream(r, 0) {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

const multiFrameStream = "data: {\"token\": \"Héllo\"}\n\n" +
	"data: {\"token\": \", 世界 \"}\n\n" +
	": keep-alive\n\n" +
	"data: {\"token\": \"🙂\"}\n\n" +
	"data: {\"done\": true}\n\n"

var multiFrameEvents = []models.Event{
	{Token: "Héllo"},
	{Token: ", 世界 "},
	{Token: "🙂"},
	{Done: true},
}

func TestDecodeStream(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []models.Event
		wantErr error
	}{
		{
			name:  "Tokens and done",
			input: multiFrameStream,
			want:  multiFrameEvents,
		},
		{
			name:  "Error payload",
			input: "data: {\"token\": \"a\"}\n\ndata: {\"error\": \"quota exceeded\"}\n\n",
			want:  []models.Event{{Token: "a"}, {Error: "quota exceeded"}},
		},
		{
			name:  "Blank payloads are skipped",
			input: "data: \n\ndata:    \n\ndata: {\"token\": \"x\"}\n\n",
			want:  []models.Event{{Token: "x"}},
		},
		{
			name:  "Named events are skipped",
			input: "event: ping\ndata: {\"token\": \"nope\"}\n\ndata: {\"token\": \"yes\"}\n\n",
			want:  []models.Event{{Token: "yes"}},
		},
		{
			name:  "CRLF line endings",
			input: "data: {\"token\": \"a\"}\r\n\r\ndata: {\"done\": true}\r\n\r\n",
			want:  []models.Event{{Token: "a"}, {Done: true}},
		},
		{
			name:  "Trailing frame without blank line",
			input: "data: {\"token\": \"a\"}\n\ndata: {\"token\": \"b\"}\n",
			want:  []models.Event{{Token: "a"}, {Token: "b"}},
		},
		{
			name:  "Trailing frame without any newline",
			input: "data: {\"token\": \"a\"}\n\ndata: {\"token\": \"b\"}",
			want:  []models.Event{{Token: "a"}, {Token: "b"}},
		},
		{
			name:    "Stream cut inside a payload",
			input:   "data: {\"token\": \"a\"}\n\ndata: {\"tok",
			want:    []models.Event{{Token: "a"}},
			wantErr: models.ErrMalformedPayload,
		},
		{
			name:  "Numeric token",
			input: "data: {\"token\": 42}\n\n",
			want:  []models.Event{{Token: "42"}},
		},
		{
			name:    "Null payload",
			input:   "data: null\n\n",
			wantErr: models.ErrMalformedPayload,
		},
		{
			name:    "Non string token",
			input:   "data: {\"token\": true}\n\n",
			wantErr: models.ErrMalformedPayload,
		},
		{
			name:  "Empty stream",
			input: "",
			want:  nil,
		},
		{
			name:    "Malformed payload",
			input:   "data: {\"token\": \"a\"}\n\ndata: {not json}\n\ndata: {\"token\": \"b\"}\n\n",
			want:    []models.Event{{Token: "a"}},
			wantErr: models.ErrMalformedPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collect(t, strings.NewReader(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodeStream() error = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeStream() events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeStreamChunking(t *testing.T) {
	// Every split point, including the ones inside multi-byte characters and inside the frame
	// delimiters, must decode to the same events.
	for i := 1; i < len(multiFrameStream); i++ {
		r := &chunkReader{chunks: []string{multiFrameStream[:i], multiFrameStream[i:]}}
		got, err := collect(t, r)
		if err != nil {
			t.Fatalf("split at %d: DecodeStream() error = %v", i, err)
		}
		if diff := cmp.Diff(multiFrameEvents, got); diff != "" {
			t.Fatalf("split at %d: events mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestDecodeStreamOneByteReads(t *testing.T) {
	got, err := collect(t, iotest.OneByteReader(strings.NewReader(multiFrameStream)))
	if err != nil {
		t.Fatalf("DecodeStream() error = %v", err)
	}
	if diff := cmp.Diff(multiFrameEvents, got); diff != "" {
		t.Errorf("DecodeStream() events mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeStreamReadError(t *testing.T) {
	errBroken := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader("data: {\"token\": \"a\"}\n\n"),
		iotest.ErrReader(errBroken),
	)

	got, err := collect(t, r)
	if !errors.Is(err, errBroken) {
		t.Fatalf("DecodeStream() error = %v, want %v", err, errBroken)
	}
	if errors.Is(err, models.ErrMalformedPayload) {
		t.Errorf("read error reported as malformed payload: %v", err)
	}
	if diff := cmp.Diff([]models.Event{{Token: "a"}}, got); diff != "" {
		t.Errorf("DecodeStream() events mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeStreamStopsWhenConsumerStops(t *testing.T) {
	count := 0
	for event, err := range services.DecodeStream(strings.NewReader(multiFrameStream), 0) {
		if err != nil {
			t.Fatalf("DecodeStream() error = %v", err)
		}
		count++
		if event.Token == ", 世界 " {
			break
		}
	}
	if count != 2 {
		t.Errorf("consumed %d events, want 2", count)
	}
}
