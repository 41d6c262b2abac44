package openaicompat

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func sse(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestStreamSSEContent(t *testing.T) {
	body := sse(
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`: keep-alive comment`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"ignored after done"}}]}`,
	)

	var chunks []string
	resp, err := StreamSSE(strings.NewReader(body), func(c string) { chunks = append(chunks, c) })
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Hello" {
		t.Errorf("content %q", resp.Content)
	}
	if len(chunks) != 2 || chunks[0] != "Hel" || chunks[1] != "lo" {
		t.Errorf("deltas not forwarded: %v", chunks)
	}
	if resp.ToolCalls != nil {
		t.Errorf("unexpected tool calls %v", resp.ToolCalls)
	}
}

func TestStreamSSEToolCallFragmentMerge(t *testing.T) {
	// Fragments arrive keyed by index: id/name latch on first
	// appearance, arguments concatenate across deltas.
	body := sse(
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"read_file","arguments":"{\"file_"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"bash","arguments":""}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"path\": \"ma"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"in.go\"}"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":1,"function":{"arguments":"{\"command\": \"ls\"}"}}]}}]}`,
		`data: [DONE]`,
	)

	resp, err := StreamSSE(strings.NewReader(body), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %v", resp.ToolCalls)
	}
	first, second := resp.ToolCalls[0], resp.ToolCalls[1]
	if first.ID != "call_a" || first.Name != "read_file" || string(first.Args) != `{"file_path":"main.go"}` {
		t.Errorf("first call wrong: %+v args=%s", first, first.Args)
	}
	if second.ID != "call_b" || second.Name != "bash" || string(second.Args) != `{"command":"ls"}` {
		t.Errorf("second call wrong: %+v args=%s", second, second.Args)
	}
}

func TestStreamSSEUnescapesToolArguments(t *testing.T) {
	// The endpoint double-encodes certain characters inside tool
	// arguments; every string field must be recursively unescaped.
	body := sse(
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"write_file","arguments":"{\"content\": \"a &lt;b&gt; &amp;&amp; c\", \"nested\": {\"v\": \"&quot;q&quot;\"}}"}}]}}]}`,
		`data: [DONE]`,
	)

	resp, err := StreamSSE(strings.NewReader(body), nil)
	if err != nil {
		t.Fatal(err)
	}
	args := string(resp.ToolCalls[0].Args)
	if !strings.Contains(args, `a <b> && c`) {
		t.Errorf("content not unescaped: %s", args)
	}
	if !strings.Contains(args, `\"q\"`) {
		t.Errorf("nested string not unescaped: %s", args)
	}
}

func TestStreamSSEEmptyArgumentsBecomeEmptyObject(t *testing.T) {
	body := sse(
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"task_list","arguments":""}}]}}]}`,
		`data: [DONE]`,
	)
	resp, err := StreamSSE(strings.NewReader(body), nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.ToolCalls[0].Args) != "{}" {
		t.Errorf("empty arguments must parse to {}, got %s", resp.ToolCalls[0].Args)
	}
}

func TestStreamSSEMalformedChunksSkipped(t *testing.T) {
	body := sse(
		`data: {not json`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	)
	resp, err := StreamSSE(strings.NewReader(body), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok" {
		t.Errorf("content %q", resp.Content)
	}
}

// errAfterReader yields its payload then fails, simulating a dropped
// connection mid-stream.
type errAfterReader struct {
	data io.Reader
	err  error
}

func (r *errAfterReader) Read(p []byte) (int, error) {
	n, err := r.data.Read(p)
	if err == io.EOF {
		return n, r.err
	}
	return n, err
}

func TestStreamSSEPartialContentOnReadError(t *testing.T) {
	payload := sse(`data: {"choices":[{"delta":{"content":"partial tokens"}}]}`)
	reader := &errAfterReader{data: strings.NewReader(payload), err: errors.New("connection reset")}

	resp, err := StreamSSE(reader, nil)
	if err == nil {
		t.Fatal("expected read error")
	}
	if resp.Content != "partial tokens" {
		t.Errorf("partial content must be preserved alongside the error, got %q", resp.Content)
	}
}
