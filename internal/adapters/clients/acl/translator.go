package acl

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/bytedance/sonic"

	"github.com/jsamuelsen/synaptik/internal/adapters/clients"
	"github.com/jsamuelsen/synaptik/internal/domain"
)

// remote sends JSON to the API and turns failures into domain errors. Wire
// types go in, and bodies of successful answers come out.
type remote struct {
	client  *clients.Client
	service string
}

// Client returns the HTTP client, for circuit state.
func (r *remote) Client() *clients.Client {
	return r.client
}

func (r *remote) call(operation, entity, id string) call {
	return call{service: r.service, operation: operation, entity: entity, id: id}
}

// send issues method on path with payload as JSON (nil sends no body). The
// caller closes the returned body.
func (r *remote) send(ctx context.Context, method, path string, payload any, c call) (io.ReadCloser, error) {
	var body io.Reader

	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", c.operation, err)
		}

		body = bytes.NewReader(raw)
	}

	resp, err := r.client.Send(ctx, method, path, body)
	if err != nil {
		return nil, failure(nil, err, c)
	}

	if err := failure(resp, nil, c); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}

	return resp.Body, nil
}

// fetch sends a request and decodes the answer into W. An undecodable answer
// means the API is not speaking our format, which callers see as unavailable.
func fetch[W any](ctx context.Context, r *remote, method, path string, payload any, c call) (*W, error) {
	body, err := r.send(ctx, method, path, payload, c)
	if err != nil {
		return nil, err
	}

	w, err := decode[W](body)
	if err != nil {
		return nil, domain.NewUnavailableError(r.service, fmt.Sprintf("%s: %v", c.operation, err))
	}

	return w, nil
}

// decode reads body into W and closes it.
func decode[W any](body io.ReadCloser) (*W, error) {
	if body == nil {
		return nil, fmt.Errorf("empty response")
	}
	defer func() { _ = body.Close() }()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var w W
	if err := sonic.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &w, nil
}

// discard drains and closes a body whose content is not needed.
func discard(body io.ReadCloser) {
	if body == nil {
		return
	}

	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// required rejects an empty identifier in a request or a response.
func required(value, field string) error {
	if value == "" {
		return domain.NewValidationError(field, "is required")
	}

	return nil
}

// translateAll converts wire items, naming the index of the first bad one.
func translateAll[W, D any](items []W, translate func(*W) (*D, error)) ([]*D, error) {
	out := make([]*D, len(items))

	for i := range items {
		d, err := translate(&items[i])
		if err != nil {
			return nil, fmt.Errorf("translating item %d: %w", i, err)
		}

		out[i] = d
	}

	return out, nil
}
