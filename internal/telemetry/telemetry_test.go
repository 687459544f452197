package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OpenPrinting/goipp"
)

func TestIPPProberReadsMarkerLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != goipp.ContentType {
			t.Errorf("content type = %q", ct)
		}
		req := &goipp.Message{}
		if err := req.Decode(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if goipp.Op(req.Code) != goipp.OpGetPrinterAttributes {
			t.Errorf("operation = %v", goipp.Op(req.Code))
		}

		resp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, req.RequestID)
		resp.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
		resp.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-US")))
		resp.Printer.Add(goipp.MakeAttribute("printer-name", goipp.TagName, goipp.String("office-1")))
		resp.Printer.Add(goipp.MakeAttribute("printer-make-and-model", goipp.TagText, goipp.String("Acme LaserJet 400")))
		resp.Printer.Add(goipp.MakeAttribute("printer-device-id", goipp.TagText, goipp.String("MFG:Acme;MDL:LJ400;SN:ACM123;")))

		names := goipp.MakeAttribute("marker-names", goipp.TagName, goipp.String("Cyan Toner"))
		names.Values.Add(goipp.TagName, goipp.String("Black Toner"))
		names.Values.Add(goipp.TagName, goipp.String("Imaging Drum"))
		resp.Printer.Add(names)

		levels := goipp.MakeAttribute("marker-levels", goipp.TagInteger, goipp.Integer(40))
		levels.Values.Add(goipp.TagInteger, goipp.Integer(85))
		levels.Values.Add(goipp.TagInteger, goipp.Integer(-2))
		resp.Printer.Add(levels)

		payload, err := resp.EncodeBytes()
		if err != nil {
			t.Errorf("encode: %v", err)
			return
		}
		w.Header().Set("Content-Type", goipp.ContentType)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	address := strings.Replace(srv.URL, "http://", "ipp://", 1) + "/ipp/print"
	prober := &IPPProber{Client: srv.Client()}

	reading, err := prober.Probe(context.Background(), address)
	if err != nil {
		t.Fatalf("Probe error: %v", err)
	}

	if reading.SysName != "office-1" {
		t.Errorf("SysName = %q", reading.SysName)
	}
	if reading.Model != "Acme LaserJet 400" {
		t.Errorf("Model = %q", reading.Model)
	}
	if reading.Serial != "ACM123" {
		t.Errorf("Serial = %q", reading.Serial)
	}
	if got := reading.Supplies["cyan toner"]; got != 40 {
		t.Errorf("cyan = %d, want 40", got)
	}
	if level, ok := reading.SupplyLevel("black"); !ok || level != 85 {
		t.Errorf("black = %d, %v", level, ok)
	}
	if _, ok := reading.Supplies["imaging drum"]; ok {
		t.Error("unknown level should be skipped")
	}
}

func TestIPPProberHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	prober := &IPPProber{Client: srv.Client()}
	if _, err := prober.Probe(context.Background(), srv.URL+"/ipp/print"); err == nil {
		t.Fatal("expected error for a 503 response")
	}
}

type stubProber struct {
	calls []string
}

func (s *stubProber) Probe(_ context.Context, address string) (*Reading, error) {
	s.calls = append(s.calls, address)
	return &Reading{}, nil
}

func TestMultiProberDispatch(t *testing.T) {
	tests := []struct {
		address string
		want    string // "snmp", "ipp" or "" for an error
	}{
		{"10.0.0.5", "snmp"},
		{"snmp://10.0.0.5:1161", "snmp"},
		{"ipp://printer.local/ipp/print", "ipp"},
		{"ipps://printer.local", "ipp"},
		{"ftp://printer.local", ""},
		{"  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			snmp, ipp := &stubProber{}, &stubProber{}
			m := &MultiProber{SNMP: snmp, IPP: ipp}

			_, err := m.Probe(context.Background(), tt.address)
			switch tt.want {
			case "":
				if err == nil {
					t.Fatal("expected error")
				}
			case "snmp":
				if err != nil || len(snmp.calls) != 1 || len(ipp.calls) != 0 {
					t.Fatalf("err=%v snmp=%v ipp=%v", err, snmp.calls, ipp.calls)
				}
			case "ipp":
				if err != nil || len(ipp.calls) != 1 || len(snmp.calls) != 0 {
					t.Fatalf("err=%v snmp=%v ipp=%v", err, snmp.calls, ipp.calls)
				}
			}
		})
	}

	m := &MultiProber{}
	if _, err := m.Probe(context.Background(), "ftp://x"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("err = %v, want ErrUnsupportedScheme", err)
	}
}

func TestSupplyPercent(t *testing.T) {
	tests := []struct {
		level, max int
		want       int
		ok         bool
	}{
		{50, 200, 25, true},
		{-3, 100, 100, true},
		{-2, 100, 0, false},
		{70, 0, 70, true},
		{500, 0, 0, false},
		{300, 200, 100, true},
	}
	for _, tt := range tests {
		got, ok := supplyPercent(tt.level, tt.max)
		if got != tt.want || ok != tt.ok {
			t.Errorf("supplyPercent(%d, %d) = %d, %v; want %d, %v", tt.level, tt.max, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHostPort(t *testing.T) {
	host, port, err := hostPort("snmp://10.1.2.3:1161", defaultSNMPPort)
	if err != nil || host != "10.1.2.3" || port != "1161" {
		t.Fatalf("got %q %q %v", host, port, err)
	}
	host, port, err = hostPort("printer.local", defaultSNMPPort)
	if err != nil || host != "printer.local" || port != "161" {
		t.Fatalf("got %q %q %v", host, port, err)
	}
}
