package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Infer posts a chat completion. Streaming requests send every chunk on
// request.StreamChannel, which Infer always closes, and return the last chunk
// with the accumulated content as its message.
func (c *Client) Infer(ctx context.Context, request *Request) (Response, error) {
	if request.Stream && request.StreamChannel == nil {
		return Response{}, fmt.Errorf("streaming request requires a channel")
	}

	requestBytes, err := json.Marshal(request)
	if err != nil {
		if request.Stream {
			close(request.StreamChannel)
		}
		return Response{}, fmt.Errorf("failed to marshal request data: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, c.endpoint("chat", "completions"), bytes.NewReader(requestBytes), "application/json")
	if err != nil {
		if request.Stream {
			close(request.StreamChannel)
		}
		return Response{}, fmt.Errorf("failed to make inference request: %w", err)
	}

	if request.Stream {
		response, err := handleStreamedResponse(resp, request.StreamChannel)
		if err != nil {
			return Response{}, fmt.Errorf("failed to handle streamed response: %w", err)
		}
		return response, nil
	}

	response, err := handleResponse(resp)
	if err != nil {
		return Response{}, fmt.Errorf("failed to handle response: %w", err)
	}
	return response, nil
}

func handleResponse(response *http.Response) (Response, error) {
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var messages Response
	if err := json.Unmarshal(body, &messages); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	return messages, nil
}

// handleStreamedResponse processes streamed responses, sending each message through the response channel.
// It follows the SSE (Server-Sent Events) format which prepends each message with "data: ".
//
//	data: {"id":"chatcmpl-1","object":"chat.completion.chunk","created":1709571416,"model":"gpt-4","choices":[{"index":0,"delta":{"role":"assistant","content":"{"},"finish_reason":null}]}
//	data: {"id":"chatcmpl-1","object":"chat.completion.chunk","created":1709571416,"model":"gpt-4","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}
//	data: [DONE]
func handleStreamedResponse(response *http.Response, responseChan chan<- *Response) (Response, error) {
	defer response.Body.Close()
	defer close(responseChan)

	reader := bufio.NewReader(response.Body)

	var (
		last        *Response
		accumulated strings.Builder
	)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return Response{}, fmt.Errorf("failed to read line: %w", err)
		}

		data, ok := bytes.CutPrefix(bytes.TrimSpace(line), []byte("data:"))
		data = bytes.TrimSpace(data)
		if ok && len(data) > 0 && !bytes.Equal(data, []byte("[DONE]")) {
			var r Response
			if err := json.Unmarshal(data, &r); err != nil {
				return Response{}, fmt.Errorf("failed to unmarshal response: %w", err)
			}
			if len(r.Choices) > 0 {
				accumulated.WriteString(r.Choices[0].Delta.Content)
			}
			responseChan <- &r
			last = &r
		}

		if err == io.EOF {
			break
		}
	}

	if last == nil {
		return Response{}, fmt.Errorf("no responses received")
	}

	out := *last
	out.Choices = append([]Choice(nil), last.Choices...)
	if len(out.Choices) == 0 {
		out.Choices = []Choice{{}}
	}
	out.Choices[0].Message = Message{Role: AssistantRole, Content: accumulated.String()}
	return out, nil
}

type AvailableModels struct {
	Data   []Datum `json:"data"`
	Object string  `json:"object"`
}

type Datum struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// AvailableModels lists the model ids the key can use, fine-tuned models included.
func (c *Client) AvailableModels(ctx context.Context) ([]string, error) {
	var models AvailableModels
	if err := c.do(ctx, http.MethodGet, c.endpoint("models"), nil, &models); err != nil {
		return nil, err
	}

	modelIDs := make([]string, 0, len(models.Data))
	for _, model := range models.Data {
		modelIDs = append(modelIDs, model.ID)
	}
	return modelIDs, nil
}
