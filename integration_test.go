package main

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"licensegate.app/cloud/handlers"
	"licensegate.app/cloud/internal/license"
	"licensegate.app/cloud/internal/testutil"
	"licensegate.app/cloud/models"
)

// End-to-end workflows over the real router.

func TestWorkflow_PaymentToValidLicense(t *testing.T) {
	server, _ := testutil.NewTestServer(t)

	// User reports a payment.
	w := testutil.DoJSON(t, server, http.MethodPost, "/api/v1/payments", handlers.PaymentRequest{
		Email: "customer@example.com",
		Plan:  "pro",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("Submit failed with status %d: %s", w.Code, w.Body.String())
	}

	// A check while the payment is pending says so.
	key := license.Derive([]byte(testutil.LicenseSecret), "customer@example.com")
	w = testutil.DoJSON(t, server, http.MethodGet,
		"/api/v1/licenses/check?email=customer@example.com&key="+key, nil, "")
	var check handlers.CheckResponse
	testutil.DecodeJSON(t, w, &check)
	if check.Status != models.StatusPending {
		t.Fatalf("Expected pending before approval, got %s", check.Status)
	}

	// Admin logs in and approves.
	token := testutil.LoginAsAdmin(t, server)
	w = testutil.DoJSON(t, server, http.MethodPost, "/api/v1/admin/payments/approve", handlers.ApproveRequest{
		Email: "customer@example.com",
		Plan:  "pro",
		Days:  30,
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Approve failed with status %d: %s", w.Code, w.Body.String())
	}
	var grant handlers.GrantResponse
	testutil.DecodeJSON(t, w, &grant)

	// The granted key validates.
	w = testutil.DoJSON(t, server, http.MethodGet,
		"/api/v1/licenses/check?email=customer@example.com&key="+grant.LicenseKey, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Check failed with status %d: %s", w.Code, w.Body.String())
	}
	testutil.DecodeJSON(t, w, &check)
	if check.Status != models.StatusValid {
		t.Errorf("Expected valid, got %s", check.Status)
	}
	if check.DaysRemaining == nil || *check.DaysRemaining < 29 || *check.DaysRemaining > 30 {
		t.Errorf("Expected days_remaining 29 or 30, got %v", check.DaysRemaining)
	}
}

func TestWorkflow_ManualRenewWithoutPayment(t *testing.T) {
	server, _ := testutil.NewTestServer(t)
	token := testutil.LoginAsAdmin(t, server)

	w := testutil.DoJSON(t, server, http.MethodPost, "/api/v1/admin/licenses/renew", handlers.RenewRequest{
		Email: "b@x.com",
		Days:  30,
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Renew failed with status %d: %s", w.Code, w.Body.String())
	}
	var grant handlers.GrantResponse
	testutil.DecodeJSON(t, w, &grant)

	expected := license.Derive([]byte(testutil.LicenseSecret), "b@x.com")
	if grant.LicenseKey != expected {
		t.Errorf("Granted key does not match derivation")
	}

	w = testutil.DoJSON(t, server, http.MethodGet,
		"/api/v1/licenses/check?email=b@x.com&key="+grant.LicenseKey, nil, "")
	var check handlers.CheckResponse
	testutil.DecodeJSON(t, w, &check)
	if check.Status != models.StatusValid {
		t.Errorf("Expected valid after renew, got %s", check.Status)
	}
}

func TestWorkflow_RejectionVisibleToUser(t *testing.T) {
	server, store := testutil.NewTestServer(t)
	token := testutil.LoginAsAdmin(t, server)

	testutil.DoJSON(t, server, http.MethodPost, "/api/v1/payments", handlers.PaymentRequest{
		Email: "a@x.com",
		Plan:  "pro",
	}, "")

	latest, err := store.LatestPayment(context.Background(), "a@x.com")
	if err != nil || latest == nil {
		t.Fatalf("Expected a pending payment, got %+v (%v)", latest, err)
	}

	w := testutil.DoJSON(t, server, http.MethodPost,
		"/api/v1/admin/payments/"+strconv.FormatInt(latest.ID, 10)+"/reject", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Reject failed with status %d: %s", w.Code, w.Body.String())
	}

	key := license.Derive([]byte(testutil.LicenseSecret), "a@x.com")
	w = testutil.DoJSON(t, server, http.MethodGet,
		"/api/v1/licenses/check?email=a@x.com&key="+key, nil, "")
	var check handlers.CheckResponse
	testutil.DecodeJSON(t, w, &check)
	if check.Status != models.StatusRejected {
		t.Errorf("Expected rejected, got %s", check.Status)
	}
}

func TestWorkflow_BadActorNeverReachesStores(t *testing.T) {
	server, store := testutil.NewTestServer(t)

	// Forged token against every admin operation.
	testutil.DoJSON(t, server, http.MethodPost, "/api/v1/admin/licenses/renew", handlers.RenewRequest{
		Email: "victim@x.com",
		Days:  365,
	}, "forged.token.value")
	testutil.DoJSON(t, server, http.MethodPost, "/api/v1/admin/payments/approve", handlers.ApproveRequest{
		Email: "victim@x.com",
		Plan:  "pro",
		Days:  365,
	}, "forged.token.value")

	license, err := store.GetLicense(context.Background(), "victim@x.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if license != nil {
		t.Error("Forged requests must not create licenses")
	}
}
