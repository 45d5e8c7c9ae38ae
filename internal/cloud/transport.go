package cloud

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"pumpsync/internal/errs"
	"pumpsync/internal/model"
)

// The archive endpoint is SOAP 1.1 over HTTP; request and response
// envelopes below mirror the vendor WSDL.

type soapEnvelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    soapBody `xml:"Body"`
}

type soapBody struct {
	Fault    *soapFault       `xml:"Fault"`
	Response *archiveResponse `xml:"GetEventArchiveResponse"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type archiveResponse struct {
	Version string `xml:"Version"`
	Payload string `xml:"Payload"` // base64 ciphertext
}

type archiveRequest struct {
	XMLName xml.Name `xml:"urn:pump-cloud GetEventArchive"`
	Serial  string   `xml:"Serial"`
	From    string   `xml:"From"`
	To      string   `xml:"To"`
}

const soapRequestTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>%s</soap:Body></soap:Envelope>`

// FetchArchive retrieves the encrypted event archive for the window.
// The blob is transient: it is handed straight to the decryptor and
// never persisted. A 401 maps to ErrTokenRejected so the caller can
// drop the cached session; everything else non-2xx is a plain
// transport failure.
func (c *Client) FetchArchive(ctx context.Context, session model.Session, serial string, w model.Window) (model.RawArchiveBlob, error) {
	reqBody, err := xml.Marshal(archiveRequest{
		Serial: serial,
		From:   w.From.UTC().Format("2006-01-02T15:04:05Z"),
		To:     w.To.UTC().Format("2006-01-02T15:04:05Z"),
	})
	if err != nil {
		return model.RawArchiveBlob{}, err
	}
	envelope := fmt.Sprintf(soapRequestTemplate, reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/services/archive", bytes.NewReader([]byte(envelope)))
	if err != nil {
		return model.RawArchiveBlob{}, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "urn:pump-cloud/GetEventArchive")
	req.Header.Set("Authorization", "Bearer "+session.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.RawArchiveBlob{}, fmt.Errorf("%w: archive fetch: %v", errs.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return model.RawArchiveBlob{}, ErrTokenRejected
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.RawArchiveBlob{}, fmt.Errorf("%w: reading archive response: %v", errs.ErrTransport, err)
	}

	// SOAP faults ride on both 200 and 500 depending on the vendor node.
	var env soapEnvelope
	if xmlErr := xml.Unmarshal(data, &env); xmlErr == nil && env.Body.Fault != nil {
		return model.RawArchiveBlob{}, fmt.Errorf("%w: soap fault %s: %s", errs.ErrTransport, env.Body.Fault.Code, env.Body.Fault.String)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.RawArchiveBlob{}, fmt.Errorf("%w: archive status %d", errs.ErrTransport, resp.StatusCode)
	}
	if env.Body.Response == nil {
		return model.RawArchiveBlob{}, fmt.Errorf("%w: archive response missing body", errs.ErrTransport)
	}

	raw, err := base64.StdEncoding.DecodeString(env.Body.Response.Payload)
	if err != nil {
		return model.RawArchiveBlob{}, fmt.Errorf("%w: archive payload not base64: %v", errs.ErrTransport, err)
	}
	return model.RawArchiveBlob{Version: env.Body.Response.Version, Data: raw}, nil
}
