package transport

import (
	"io"

	"github.com/imroc/req/v3"
	"github.com/sdejongh/remotesync/pkg/provider"
)

// Check maps a req result onto a provider error. A nil return means the
// response carries a 2xx status. Error responses with an unread body are
// drained and closed.
func Check(op, path string, resp *req.Response, err error) error {
	if err != nil {
		closeBody(resp)
		return provider.TransportError(op, path, err)
	}
	if resp == nil || resp.Response == nil {
		return provider.TransportError(op, path, io.ErrUnexpectedEOF)
	}
	if perr := provider.StatusError(op, path, resp.StatusCode); perr != nil {
		closeBody(resp)
		return perr
	}
	return nil
}

// CheckStatus is Check with an explicit set of accepted statuses, used when
// a protocol defines success more narrowly or broadly than 2xx.
func CheckStatus(op, path string, resp *req.Response, err error, accepted ...int) error {
	if err != nil || resp == nil || resp.Response == nil {
		return Check(op, path, resp, err)
	}
	for _, status := range accepted {
		if resp.StatusCode == status {
			return nil
		}
	}
	closeBody(resp)
	if kind := provider.KindForStatus(resp.StatusCode); kind != nil {
		return &provider.Error{Op: op, Path: path, StatusCode: resp.StatusCode, Kind: kind}
	}
	return &provider.Error{Op: op, Path: path, StatusCode: resp.StatusCode, Kind: provider.ErrUnexpectedStatus}
}

func closeBody(resp *req.Response) {
	if resp == nil || resp.Response == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
}

// Body wraps a streamed response body so that read failures surface as
// transport errors for op and path.
func Body(op, path string, body io.ReadCloser) io.ReadCloser {
	return &bodyReader{ReadCloser: body, op: op, path: path}
}

type bodyReader struct {
	io.ReadCloser
	op, path string
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = provider.TransportError(b.op, b.path, err)
	}
	return n, err
}
