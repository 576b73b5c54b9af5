package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/brokerload/lenderdesk/internal/bulk"
	"github.com/brokerload/lenderdesk/internal/lender"
)

const bulkCSVHeader = "name,code,upfront_commission_rate,trial_commission_rate,active\n"

func TestBulkEndpoints_RequireAuth(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		auth   string
	}{
		{"export without credentials", http.MethodGet, ""},
		{"import without credentials", http.MethodPost, ""},
		{"export with wrong password", http.MethodGet, basicAuthHeader("staff", "wrong")},
		{"import with unknown user", http.MethodPost, basicAuthHeader("nobody", "secret")},
		{"import with deactivated user", http.MethodPost, basicAuthHeader("retired", "secret")},
		{"export with malformed header", http.MethodGet, "Bearer abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body *strings.Reader
			if tt.method == http.MethodPost {
				body = strings.NewReader(bulkCSVHeader + "Acme,ABC,1.5,0.5,TRUE\n")
			} else {
				body = strings.NewReader("")
			}
			rec := doRequest(s, tt.method, "/csv-in-bulk/", tt.auth, body)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"Unauthorized"}` {
				t.Errorf("body = %s, want {\"error\":\"Unauthorized\"}", got)
			}
		})
	}
}

func TestBulkImport_AllRowsAdded(t *testing.T) {
	s, repo := newTestServer(t)

	csv := bulkCSVHeader +
		"Acme Finance,ACM,1.75,0.25,TRUE\n" +
		"Beta Loans,BET,2,0.5,FALSE\n"
	rec := doRequest(s, http.MethodPost, "/csv-in-bulk/", basicAuthHeader("staff", "secret"), strings.NewReader(csv))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var result bulk.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(result.ItemsAdded) != 2 || len(result.ItemsNotAdded) != 0 || len(result.ParseErrors) != 0 {
		t.Errorf("result = added %d, not added %d, parse errors %d; want 2, 0, 0",
			len(result.ItemsAdded), len(result.ItemsNotAdded), len(result.ParseErrors))
	}

	if _, err := repo.GetByCode(context.Background(), "ACM"); err != nil {
		t.Errorf("ACM not persisted: %v", err)
	}
	if _, err := repo.GetByCode(context.Background(), "BET"); err != nil {
		t.Errorf("BET not persisted: %v", err)
	}
}

func TestBulkImport_PartialFailure(t *testing.T) {
	s, _ := newTestServer(t)

	csv := bulkCSVHeader +
		"Good Lender,GDL,1,1,TRUE\n" +
		"Bad Lender,bad,1,1,TRUE\n"
	rec := doRequest(s, http.MethodPost, "/csv-in-bulk/", basicAuthHeader("staff", "secret"), strings.NewReader(csv))

	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207; body: %s", rec.Code, rec.Body.String())
	}

	var result bulk.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(result.ItemsAdded) != 1 || len(result.ItemsNotAdded) != 1 {
		t.Fatalf("result = added %d, not added %d; want 1 and 1", len(result.ItemsAdded), len(result.ItemsNotAdded))
	}
	if result.ItemsNotAdded[0].Exception == nil ||
		!strings.Contains(*result.ItemsNotAdded[0].Exception, "capital alphabets") {
		t.Errorf("exception = %v, want code validation message", result.ItemsNotAdded[0].Exception)
	}
}

func TestBulkImport_EmptyBody(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/csv-in-bulk/", basicAuthHeader("staff", "secret"), strings.NewReader(""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
	}

	var result bulk.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(result.ParseErrors) == 0 {
		t.Error("expected a parse error for an empty upload")
	}
}

func TestBulkImport_BodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.Import.MaxBodySize = 16

	csv := bulkCSVHeader + "Oversize Lender,OVR,1,1,TRUE\n"
	rec := doRequest(s, http.MethodPost, "/csv-in-bulk/", basicAuthHeader("staff", "secret"), strings.NewReader(csv))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
	}
}

func TestBulkExport_EmptyStore(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/csv-in-bulk/", basicAuthHeader("staff", "secret"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty stream", rec.Body.String())
	}
}

func TestBulkExport_HeadersAndContent(t *testing.T) {
	s, repo := newTestServer(t)

	for _, in := range []lender.CreateInput{
		{Name: "Acme Finance", Code: "ACM", UpfrontCommissionRate: 1.75, TrialCommissionRate: 0.25, Active: true},
		{Name: "Beta Loans", Code: "BET", UpfrontCommissionRate: 2, TrialCommissionRate: 0.5, Active: false},
	} {
		if _, err := repo.Create(context.Background(), in); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rec := doRequest(s, http.MethodGet, "/csv-in-bulk/", basicAuthHeader("staff", "secret"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="bulk_download_`) || !strings.HasSuffix(cd, `.csv"`) {
		t.Errorf("Content-Disposition = %q, want attachment with bulk_download filename", cd)
	}

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("export has %d lines, want header plus 2 rows:\n%s", len(lines), rec.Body.String())
	}
	if want := strings.Join((&lender.Lender{}).CSVHeader(), ","); lines[0] != want {
		t.Errorf("header = %q, want %q", lines[0], want)
	}
	if !strings.Contains(lines[1], "Acme Finance") || !strings.Contains(lines[2], "Beta Loans") {
		t.Errorf("rows out of creation order:\n%s", rec.Body.String())
	}
}
