package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OpenPrinting/goipp"
)

var ippRequestedAttributes = []string{
	"printer-name",
	"printer-make-and-model",
	"printer-device-id",
	"marker-names",
	"marker-levels",
}

// IPPProber reads marker levels with Get-Printer-Attributes
type IPPProber struct {
	Timeout time.Duration
	Client  *http.Client
}

func (p *IPPProber) Probe(ctx context.Context, address string) (*Reading, error) {
	printerURI, httpURL, err := ippURLs(address)
	if err != nil {
		return nil, err
	}

	req := goipp.NewRequest(goipp.DefaultVersion, goipp.OpGetPrinterAttributes, uint32(time.Now().UnixNano()))
	req.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
	req.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-US")))
	req.Operation.Add(goipp.MakeAttribute("printer-uri", goipp.TagURI, goipp.String(printerURI)))
	requested := goipp.MakeAttribute("requested-attributes", goipp.TagKeyword, goipp.String(ippRequestedAttributes[0]))
	for _, name := range ippRequestedAttributes[1:] {
		requested.Values.Add(goipp.TagKeyword, goipp.String(name))
	}
	req.Operation.Add(requested)

	payload, err := req.EncodeBytes()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, httpURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", goipp.ContentType)
	httpReq.Header.Set("Accept", goipp.ContentType)

	resp, err := p.client().Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("ipp request failed: %s", resp.Status)
	}

	msg := &goipp.Message{}
	if err := msg.Decode(resp.Body); err != nil {
		return nil, err
	}
	if status := goipp.Status(msg.Code); status >= 0x0100 {
		return nil, fmt.Errorf("ipp status %s", status)
	}

	return readingFromAttributes(printerAttributes(msg)), nil
}

func (p *IPPProber) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// ippURLs returns the printer-uri attribute value and the http(s) endpoint to post to
func ippURLs(address string) (string, string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", "", err
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("no host in %q", address)
	}

	target := *u
	switch strings.ToLower(u.Scheme) {
	case "ipp":
		target.Scheme = "http"
	case "ipps":
		target.Scheme = "https"
	case "http", "https":
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Port() == "" && (u.Scheme == "ipp" || u.Scheme == "ipps") {
		target.Host = u.Hostname() + ":631"
	}
	if target.Path == "" {
		target.Path = "/ipp/print"
	}

	printerURI := *u
	if printerURI.Path == "" {
		printerURI.Path = target.Path
	}
	return printerURI.String(), target.String(), nil
}

func printerAttributes(msg *goipp.Message) goipp.Attributes {
	for _, group := range msg.Groups {
		if group.Tag == goipp.TagPrinterGroup {
			return group.Attrs
		}
	}
	return msg.Printer
}

func readingFromAttributes(attrs goipp.Attributes) *Reading {
	reading := &Reading{Supplies: map[string]int{}, PolledAt: time.Now()}

	var names []string
	var levels []int
	for _, attr := range attrs {
		switch attr.Name {
		case "printer-name":
			reading.SysName = firstString(attr)
		case "printer-make-and-model":
			reading.Model = firstString(attr)
		case "printer-device-id":
			if serial := deviceIDField(firstString(attr), "SN", "SERN"); serial != "" {
				reading.Serial = serial
			}
		case "marker-names":
			for _, v := range attr.Values {
				names = append(names, strings.ToLower(strings.TrimSpace(v.V.String())))
			}
		case "marker-levels":
			for _, v := range attr.Values {
				if n, ok := v.V.(goipp.Integer); ok {
					levels = append(levels, int(n))
				} else {
					levels = append(levels, -2)
				}
			}
		}
	}

	for i, name := range names {
		if i >= len(levels) {
			break
		}
		if percent, ok := supplyPercent(levels[i], 100); ok {
			reading.Supplies[name] = percent
		}
	}
	return reading
}

func firstString(attr goipp.Attribute) string {
	if len(attr.Values) == 0 {
		return ""
	}
	return strings.TrimSpace(attr.Values[0].V.String())
}

// deviceIDField picks a key out of an IEEE 1284 device id ("MFG:x;MDL:y;SN:z;")
func deviceIDField(id string, keys ...string) string {
	for _, part := range strings.Split(id, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		for _, key := range keys {
			if strings.EqualFold(strings.TrimSpace(k), key) {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}
