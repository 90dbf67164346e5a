package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"riskradar/pkg/models"
)

func explorerServer(t *testing.T, sourceJSON, codeJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("action") {
		case "getsourcecode":
			fmt.Fprint(w, sourceJSON)
		case "eth_getCode":
			fmt.Fprint(w, codeJSON)
		default:
			t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
			http.Error(w, "bad action", http.StatusBadRequest)
		}
	}))
}

func TestLookupVerifiedSource(t *testing.T) {
	srv := explorerServer(t,
		`{"status":"1","result":[{"SourceCode":"contract Token {}","ContractName":"Token","CompilerVersion":"v0.8.24"}]}`,
		`{"result":"0x6080"}`)
	defer srv.Close()

	c, err := NewClient(Config{APIURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	enr, err := c.Lookup(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if enr.Kind != models.EnrichmentVerified {
		t.Fatalf("expected verified enrichment, got %q", enr.Kind)
	}
	if enr.ContractName != "Token" || enr.Compiler != "v0.8.24" || enr.Source != "contract Token {}" {
		t.Fatalf("unexpected enrichment: %+v", enr)
	}
}

func TestLookupFallsBackToBytecode(t *testing.T) {
	srv := explorerServer(t,
		`{"status":"0","result":[]}`,
		`{"result":"0x608060405234"}`)
	defer srv.Close()

	c, err := NewClient(Config{APIURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	enr, err := c.Lookup(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if enr.Kind != models.EnrichmentBytecode {
		t.Fatalf("expected bytecode enrichment, got %q", enr.Kind)
	}
	if enr.Bytecode != "0x608060405234" {
		t.Fatalf("unexpected bytecode: %q", enr.Bytecode)
	}
}

func TestLookupUnavailableWhenNoCode(t *testing.T) {
	srv := explorerServer(t,
		`{"status":"1","result":[{"SourceCode":"","ContractName":"","CompilerVersion":""}]}`,
		`{"result":"0x"}`)
	defer srv.Close()

	c, err := NewClient(Config{APIURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	enr, err := c.Lookup(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if enr.Kind != models.EnrichmentUnavailable {
		t.Fatalf("expected unavailable enrichment, got %q", enr.Kind)
	}
}

func TestLookupCapsOversizedSource(t *testing.T) {
	huge := strings.Repeat("a", maxSourceChars+500)
	srv := explorerServer(t,
		`{"status":"1","result":[{"SourceCode":"`+huge+`","ContractName":"Big","CompilerVersion":"v0.8.24"}]}`,
		`{"result":"0x"}`)
	defer srv.Close()

	c, err := NewClient(Config{APIURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	enr, err := c.Lookup(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(enr.Source) != maxSourceChars {
		t.Fatalf("expected source capped at %d, got %d", maxSourceChars, len(enr.Source))
	}
}

func TestLookupServerErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Lookup(context.Background(), "0xabc"); err == nil {
		t.Fatalf("expected error on http failure")
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error for empty api url")
	}
}
