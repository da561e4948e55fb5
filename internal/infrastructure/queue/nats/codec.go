package nats

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

// searchReply is the wire form of a search outcome: either the response
// fields or a caller-facing error message.
type searchReply struct {
	*domain.SearchResponse
	Error string `json:"error,omitempty"`
}

func DecodeSearchRequest(data []byte) (domain.SearchRequest, error) {
	var req domain.SearchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.SearchRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode search request", err)
	}
	return req, nil
}

func EncodeSearchReply(resp *domain.SearchResponse, err error) []byte {
	reply := searchReply{}
	if err != nil {
		reply.Error = domain.PublicMessage(err)
	} else {
		reply.SearchResponse = resp
	}
	out, marshalErr := json.Marshal(reply)
	if marshalErr != nil {
		return []byte(`{"error":"search failed"}`)
	}
	return out
}

func DecodeSearchReply(data []byte) (*domain.SearchResponse, error) {
	var reply searchReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("decode search reply: %w", err)
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	if reply.SearchResponse == nil {
		return nil, errors.New("decode search reply: empty response")
	}
	return reply.SearchResponse, nil
}
