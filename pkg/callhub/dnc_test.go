package callhub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"testing"

	"github.com/dialops/callhub-client/internal/testutil"
)

// newDNCMock serves two dnc lists and three dnc entries: 15551230000 is on
// both lists, 15559870000 only on list 5543.
func newDNCMock(t *testing.T) (*testutil.MockCallHub, *Client) {
	t.Helper()

	mock := testutil.NewMockCallHub()
	t.Cleanup(mock.Close)

	base := mock.URL()
	mock.SetListing("/v1/dnc_lists/", []string{
		fmt.Sprintf(`{"url": "%s/v1/dnc_lists/5543/", "name": "press 2 list"}`, base),
		fmt.Sprintf(`{"url": "%s/v1/dnc_lists/7761/", "name": "opt out"}`, base),
	}, 10)
	mock.SetListing("/v1/dnc_contacts/", []string{
		fmt.Sprintf(`{"url": "%s/v1/dnc_contacts/101/", "dnc": "%s/v1/dnc_lists/5543/", "phone_number": "15551230000"}`, base, base),
		fmt.Sprintf(`{"url": "%s/v1/dnc_contacts/102/", "dnc": "%s/v1/dnc_lists/7761/", "phone_number": "15551230000"}`, base, base),
		fmt.Sprintf(`{"url": "%s/v1/dnc_contacts/103/", "dnc": "%s/v1/dnc_lists/5543/", "phone_number": "15559870000"}`, base, base),
	}, 10)

	return mock, newTestClient(t, mock)
}

func TestGetDNCLists(t *testing.T) {
	_, client := newDNCMock(t)

	lists, err := client.GetDNCLists(context.Background())
	if err != nil {
		t.Fatalf("GetDNCLists() error = %v", err)
	}

	want := map[int64]string{5543: "press 2 list", 7761: "opt out"}
	if !reflect.DeepEqual(lists, want) {
		t.Errorf("GetDNCLists() = %v, want %v", lists, want)
	}
}

func TestGetDNCPhones(t *testing.T) {
	_, client := newDNCMock(t)

	phones, err := client.GetDNCPhones(context.Background())
	if err != nil {
		t.Fatalf("GetDNCPhones() error = %v", err)
	}

	first := phones["15551230000"]
	if len(first) != 2 {
		t.Fatalf("15551230000 has %d entries, want 2", len(first))
	}
	if first[0].ContactID != 101 || first[0].ListID != 5543 || first[0].ListName != "press 2 list" {
		t.Errorf("first entry = %+v, want contact 101 on list 5543 (press 2 list)", first[0])
	}
	if first[1].ContactID != 102 || first[1].ListID != 7761 || first[1].ListName != "opt out" {
		t.Errorf("second entry = %+v, want contact 102 on list 7761 (opt out)", first[1])
	}

	second := phones["15559870000"]
	if len(second) != 1 || second[0].ContactID != 103 {
		t.Errorf("15559870000 entries = %+v, want contact 103 only", second)
	}
}

func TestAddDNC_PostsOnePerPhone(t *testing.T) {
	mock := testutil.NewMockCallHub()
	t.Cleanup(mock.Close)
	mock.SetResponse("/v1/dnc_contacts/", testutil.MockResponse{
		StatusCode: http.StatusCreated,
		Body:       `{"url": "created"}`,
	})

	client := newTestClient(t, mock)
	phones := []string{"15551110000", "15552220000", "15553330000"}

	result, err := client.AddDNC(context.Background(), phones, 5543)
	if err != nil {
		t.Fatalf("AddDNC() error = %v", err)
	}
	if len(result.Outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(result.Outcomes))
	}
	for i, outcome := range result.Outcomes {
		if !outcome.OK() {
			t.Errorf("outcome %d failed: %v", i, outcome.Err)
		}
	}

	requests := mock.RequestsFor("/v1/dnc_contacts/")
	if len(requests) != 3 {
		t.Fatalf("dnc endpoint saw %d requests, want 3", len(requests))
	}

	wantListURL := mock.URL() + "/v1/dnc_lists/5543/"
	var seen []string
	for _, req := range requests {
		form, err := url.ParseQuery(string(req.Body))
		if err != nil {
			t.Fatalf("parse form body: %v", err)
		}
		if got := form.Get("dnc"); got != wantListURL {
			t.Errorf("dnc = %q, want %q", got, wantListURL)
		}
		seen = append(seen, form.Get("phone_number"))
	}
	sort.Strings(seen)
	if !reflect.DeepEqual(seen, phones) {
		t.Errorf("posted phones = %v, want %v", seen, phones)
	}
}

func TestAddDNC_OutcomesAlignWithPhones(t *testing.T) {
	mock := testutil.NewMockCallHub()
	t.Cleanup(mock.Close)
	mock.SetHandler("/v1/dnc_contacts/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("phone_number") == "not-a-number" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"phone_number": ["Invalid phone number."]}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"url": "created"}`))
	})

	client := newTestClient(t, mock)
	phones := []string{"15551110000", "not-a-number", "15553330000"}

	result, err := client.AddDNC(context.Background(), phones, 5543)
	if err != nil {
		t.Fatalf("AddDNC() error = %v", err)
	}

	if result.Outcomes[0].Err != nil || result.Outcomes[2].Err != nil {
		t.Errorf("valid phones failed: %v, %v", result.Outcomes[0].Err, result.Outcomes[2].Err)
	}
	if result.Outcomes[1].Err == nil {
		t.Error("invalid phone should carry its slot error")
	}
	if got := result.Failed(); got != 1 {
		t.Errorf("Failed() = %d, want 1", got)
	}
}

func TestAddDNC_Validation(t *testing.T) {
	mock := testutil.NewMockCallHub()
	t.Cleanup(mock.Close)
	client := newTestClient(t, mock)

	if _, err := client.AddDNC(context.Background(), nil, 5543); err == nil {
		t.Error("AddDNC() should reject an empty phone slice")
	}
	if _, err := client.AddDNC(context.Background(), []string{"15551110000"}, 0); err == nil {
		t.Error("AddDNC() should reject a missing list id")
	}
	if got := mock.RequestCount(); got != 0 {
		t.Errorf("remote saw %d requests, want 0", got)
	}
}

func TestRemoveDNC_DeletesMatchingEntries(t *testing.T) {
	mock, client := newDNCMock(t)
	mock.SetResponse("/v1/dnc_contacts/101/", testutil.MockResponse{StatusCode: http.StatusNoContent})
	mock.SetResponse("/v1/dnc_contacts/103/", testutil.MockResponse{StatusCode: http.StatusNoContent})

	result, matched, err := client.RemoveDNC(context.Background(), []string{"15551230000", "15559870000"}, 5543)
	if err != nil {
		t.Fatalf("RemoveDNC() error = %v", err)
	}

	// Only the entries on list 5543 match; entry 102 lives on 7761.
	if len(matched) != 2 || matched[0].ContactID != 101 || matched[1].ContactID != 103 {
		t.Fatalf("matched = %+v, want contacts 101 and 103", matched)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(result.Outcomes))
	}
	for i, outcome := range result.Outcomes {
		if !outcome.OK() {
			t.Errorf("delete of contact %d failed: %v", matched[i].ContactID, outcome.Err)
		}
	}

	if count := len(mock.RequestsFor("/v1/dnc_contacts/102/")); count != 0 {
		t.Errorf("entry on another list saw %d deletes, want 0", count)
	}
	for _, path := range []string{"/v1/dnc_contacts/101/", "/v1/dnc_contacts/103/"} {
		requests := mock.RequestsFor(path)
		if len(requests) != 1 || requests[0].Method != http.MethodDelete {
			t.Errorf("%s saw %v, want one DELETE", path, requests)
		}
	}
}

func TestRemoveDNC_PartialFailure(t *testing.T) {
	mock, client := newDNCMock(t)
	mock.SetResponse("/v1/dnc_contacts/101/", testutil.MockResponse{StatusCode: http.StatusNoContent})
	mock.SetResponse("/v1/dnc_contacts/103/", testutil.NewServerErrorResponse())

	result, matched, err := client.RemoveDNC(context.Background(), []string{"15551230000", "15559870000"}, 5543)
	if err != nil {
		t.Fatalf("RemoveDNC() error = %v", err)
	}

	if result.Outcomes[0].Err != nil {
		t.Errorf("delete of contact %d failed: %v", matched[0].ContactID, result.Outcomes[0].Err)
	}
	if result.Outcomes[1].Err == nil {
		t.Errorf("delete of contact %d should have failed", matched[1].ContactID)
	}
}

func TestRemoveDNC_NoMatches(t *testing.T) {
	mock, client := newDNCMock(t)

	result, matched, err := client.RemoveDNC(context.Background(), []string{"19990000000"}, 5543)
	if err != nil {
		t.Fatalf("RemoveDNC() error = %v", err)
	}
	if len(result.Outcomes) != 0 {
		t.Errorf("got %d outcomes, want 0", len(result.Outcomes))
	}
	if matched != nil {
		t.Errorf("matched = %v, want none", matched)
	}

	for _, req := range mock.Requests() {
		if req.Method == http.MethodDelete {
			t.Errorf("unexpected DELETE to %s", req.Path)
		}
	}
}

func TestCreateDNCList(t *testing.T) {
	mock := testutil.NewMockCallHub()
	t.Cleanup(mock.Close)
	mock.SetResponse("/v1/dnc_lists/", testutil.MockResponse{
		StatusCode: http.StatusCreated,
		Body:       `{"url": "` + mock.URL() + `/v1/dnc_lists/8842/", "name": "robocall opt-outs"}`,
	})

	client := newTestClient(t, mock)
	id, err := client.CreateDNCList(context.Background(), "robocall opt-outs")
	if err != nil {
		t.Fatalf("CreateDNCList() error = %v", err)
	}
	if id != 8842 {
		t.Errorf("id = %d, want 8842", id)
	}

	req := mock.LastRequest()
	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		t.Fatalf("parse form body: %v", err)
	}
	if got := form.Get("name"); got != "robocall opt-outs" {
		t.Errorf("name = %q, want robocall opt-outs", got)
	}
}

func TestRemoveDNCList(t *testing.T) {
	mock := testutil.NewMockCallHub()
	t.Cleanup(mock.Close)
	mock.SetResponse("/v1/dnc_lists/8842/", testutil.MockResponse{StatusCode: http.StatusNoContent})

	client := newTestClient(t, mock)
	if err := client.RemoveDNCList(context.Background(), 8842); err != nil {
		t.Fatalf("RemoveDNCList() error = %v", err)
	}

	req := mock.LastRequest()
	if req.Method != http.MethodDelete || req.Path != "/v1/dnc_lists/8842/" {
		t.Errorf("last request = %s %s, want DELETE /v1/dnc_lists/8842/", req.Method, req.Path)
	}
}

func TestParseRecordID(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    int64
		wantErr bool
	}{
		{"trailing slash", "https://api.callhub.io/v1/dnc_lists/5543/", 5543, false},
		{"no trailing slash", "https://api.callhub.io/v1/dnc_lists/5543", 5543, false},
		{"with query", "https://api.callhub.io/v1/dnc_lists/12/?page=2", 12, false},
		{"not numeric", "https://api.callhub.io/v1/dnc_lists/latest/", 0, true},
		{"empty path", "https://api.callhub.io", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRecordID(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRecordID(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseRecordID(%q) = %d, want %d", tt.url, got, tt.want)
			}
		})
	}
}
