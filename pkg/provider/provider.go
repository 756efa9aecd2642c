package provider

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Kind identifies which LLM API a request targets.
type Kind string

const (
	OpenAI    Kind = "openai"
	Anthropic Kind = "anthropic"
	Unknown   Kind = "unknown"
)

// Detect identifies the target API by host, then headers, then body
// shape, in that order of preference. body may be nil or empty; each
// stage is skipped gracefully if its input is absent.
func Detect(target *url.URL, headers http.Header, body []byte) Kind {
	if target != nil {
		host := strings.ToLower(target.Hostname())
		switch {
		case strings.HasSuffix(host, ".openai.com") || host == "openai.com":
			return OpenAI
		case strings.HasSuffix(host, ".anthropic.com") || host == "anthropic.com":
			return Anthropic
		}
	}

	if headers != nil {
		if headers.Get("x-api-key") != "" {
			return Anthropic
		}
		if auth := headers.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			return OpenAI
		}
	}

	if len(body) > 0 {
		parsed := gjson.ParseBytes(body)
		if parsed.Get("system").Exists() || parsed.Get("max_tokens").Exists() {
			return Anthropic
		}
		if msgs := parsed.Get("messages"); msgs.IsArray() {
			if len(msgs.Array()) > 0 && msgs.Array()[0].Get("role").String() == "system" {
				return OpenAI
			}
		}
	}

	return Unknown
}

// ExtractUserQuery returns the last user message's text, or false if
// none is present.
func ExtractUserQuery(kind Kind, body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	messages := gjson.GetBytes(body, "messages")
	if !messages.IsArray() {
		return "", false
	}

	arr := messages.Array()
	for i := len(arr) - 1; i >= 0; i-- {
		msg := arr[i]
		if msg.Get("role").String() != "user" {
			continue
		}
		if text := concatTextContent(msg.Get("content")); text != "" {
			return text, true
		}
	}
	return "", false
}

// concatTextContent returns content as-is when it's a plain string, or
// the concatenation of its text-typed blocks when it's an array.
func concatTextContent(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if !content.IsArray() {
		return ""
	}
	var b strings.Builder
	for _, block := range content.Array() {
		if block.Get("type").String() == "text" {
			b.WriteString(block.Get("text").String())
		}
	}
	return b.String()
}

// InjectMemories splices a pre-rendered memory block into body, each
// provider's own way. An empty block is a no-op. Unknown passes body
// through byte-exact.
func InjectMemories(kind Kind, body []byte, block string) ([]byte, error) {
	if block == "" || kind == Unknown {
		return body, nil
	}

	switch kind {
	case OpenAI:
		return injectOpenAI(body, block)
	case Anthropic:
		return injectAnthropic(body, block)
	default:
		return body, nil
	}
}

func injectOpenAI(body []byte, block string) ([]byte, error) {
	messages := gjson.GetBytes(body, "messages")
	if !messages.IsArray() {
		return body, nil
	}
	arr := messages.Array()

	for i, msg := range arr {
		if msg.Get("role").String() == "system" {
			existing := msg.Get("content").String()
			return sjson.SetBytes(body, "messages."+strconv.Itoa(i)+".content", existing+"\n\n"+block)
		}
	}

	newMessages := make([]any, 0, len(arr)+1)
	newMessages = append(newMessages, map[string]any{"role": "system", "content": block})
	for _, msg := range arr {
		newMessages = append(newMessages, msg.Value())
	}
	return sjson.SetBytes(body, "messages", newMessages)
}

func injectAnthropic(body []byte, block string) ([]byte, error) {
	system := gjson.GetBytes(body, "system")
	if system.Exists() && system.Type == gjson.String {
		return sjson.SetBytes(body, "system", system.String()+"\n"+block)
	}
	return sjson.SetBytes(body, "system", block)
}

// ParseResponseContent extracts the assistant's concatenated text from
// a non-streaming JSON response body. A response truncated by a
// dropped upstream connection is still attempted: one repair pass
// before giving up, since discarding a merely-ragged-edges body loses
// a memory the repair would have recovered.
func ParseResponseContent(kind Kind, body []byte) string {
	body = repairIfInvalid(body)
	switch kind {
	case OpenAI:
		choice := gjson.GetBytes(body, "choices.0.message.content")
		return choice.String()
	case Anthropic:
		var b strings.Builder
		for _, block := range gjson.GetBytes(body, "content").Array() {
			if block.Get("type").String() == "text" {
				b.WriteString(block.Get("text").String())
			}
		}
		return b.String()
	default:
		return ""
	}
}

// ParseSSEContent reconstructs the assistant's concatenated text from a
// full SSE buffer, skipping non-text event types: Anthropic's
// thinking_delta and input_json_delta, and OpenAI's tool/function call
// deltas.
func ParseSSEContent(kind Kind, buffer []byte) string {
	var b strings.Builder
	for _, line := range strings.Split(string(buffer), "\n") {
		line = strings.TrimSpace(line)
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}

		switch kind {
		case OpenAI:
			delta := gjson.Get(data, "choices.0.delta.content")
			if delta.Exists() {
				b.WriteString(delta.String())
			}
		case Anthropic:
			frame := gjson.Parse(data)
			if frame.Get("type").String() != "content_block_delta" {
				continue
			}
			delta := frame.Get("delta")
			if delta.Get("type").String() == "text_delta" {
				b.WriteString(delta.Get("text").String())
			}
		}
	}
	return b.String()
}

// repairIfInvalid returns body unchanged when it is already valid JSON.
// Otherwise it attempts one jsonrepair pass (unbalanced braces, a
// trailing comma, a stream cut mid-token) and returns the repaired
// bytes; if repair itself fails, the original body is returned so the
// caller's gjson lookups simply come back empty.
func repairIfInvalid(body []byte) []byte {
	if json.Valid(body) {
		return body
	}
	fixed, err := jsonrepair.JSONRepair(string(body))
	if err != nil {
		return body
	}
	return []byte(fixed)
}
