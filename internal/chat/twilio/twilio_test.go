package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/roadwatch/roadwatch/internal/chat"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(ClientOpts{
		AccountSID: "AC00000000000000000000000000000000",
		AuthToken:  "secret-token",
		From:       "whatsapp:+14155238886",
		BaseURL:    baseURL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSendPostsMessageForm(t *testing.T) {
	var got url.Values
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Accounts/AC00000000000000000000000000000000/Messages.json") {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, pass, _ := r.BasicAuth()
		auth = user + ":" + pass
		r.ParseForm()
		got = r.PostForm
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Send(context.Background(), "whatsapp:+919912345678", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if auth != "AC00000000000000000000000000000000:secret-token" {
		t.Errorf("basic auth = %q", auth)
	}
	if got.Get("From") != "whatsapp:+14155238886" {
		t.Errorf("From = %q", got.Get("From"))
	}
	if got.Get("To") != "whatsapp:+919912345678" {
		t.Errorf("To = %q", got.Get("To"))
	}
	if got.Get("Body") != "hello" {
		t.Errorf("Body = %q", got.Get("Body"))
	}
}

func TestSendSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.Send(context.Background(), "whatsapp:bogus", "hello")
	if err == nil {
		t.Fatal("Send succeeded, want error")
	}
	if !strings.Contains(err.Error(), "21211") || !strings.Contains(err.Error(), "Invalid 'To' Phone Number") {
		t.Errorf("err = %v, want Twilio code and message", err)
	}
}

func TestNotifyAddsWhatsAppPrefix(t *testing.T) {
	var to string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		to = r.PostFormValue("To")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Notify(context.Background(), "+919800000001", "alert"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if to != "whatsapp:+919800000001" {
		t.Errorf("To = %q, want prefixed address", to)
	}

	if err := c.Notify(context.Background(), "whatsapp:+919800000002", "alert"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if to != "whatsapp:+919800000002" {
		t.Errorf("To = %q, want prefix untouched", to)
	}
}

func TestNotifySMSUsesSMSSender(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		got = r.PostForm
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewClient(ClientOpts{
		AccountSID: "AC00000000000000000000000000000000",
		AuthToken:  "secret-token",
		From:       "whatsapp:+14155238886",
		SMSFrom:    "+14155238886",
		BaseURL:    srv.URL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := c.NotifySMS(context.Background(), "+919700000001", "code 123456"); err != nil {
		t.Fatalf("NotifySMS: %v", err)
	}
	if got.Get("From") != "+14155238886" {
		t.Errorf("From = %q, want bare sms sender", got.Get("From"))
	}
	if got.Get("To") != "+919700000001" {
		t.Errorf("To = %q, want bare phone", got.Get("To"))
	}

	// A stored whatsapp: handle is stripped back to the phone number.
	if err := c.NotifySMS(context.Background(), "whatsapp:+919700000002", "code 123456"); err != nil {
		t.Fatalf("NotifySMS: %v", err)
	}
	if got.Get("To") != "+919700000002" {
		t.Errorf("To = %q, want prefix stripped", got.Get("To"))
	}
}

func TestNotifySMSWithoutSenderFails(t *testing.T) {
	c := newTestClient(t, "http://unreachable.invalid")
	err := c.NotifySMS(context.Background(), "+919700000001", "code 123456")
	if err == nil {
		t.Fatal("expected error without an sms sender configured")
	}
	if !strings.Contains(err.Error(), "sms") {
		t.Errorf("err = %v, want sms sender mention", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		opts ClientOpts
	}{
		{"missing sid", ClientOpts{AuthToken: "t", From: "whatsapp:+1"}},
		{"missing token", ClientOpts{AccountSID: "AC1", From: "whatsapp:+1"}},
		{"missing from", ClientOpts{AccountSID: "AC1", AuthToken: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func webhookRequest(t *testing.T, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestParseInbound(t *testing.T) {
	form := url.Values{
		"MessageSid":        {"SM123"},
		"From":              {"whatsapp:+919912345678"},
		"ProfileName":       {"Asha"},
		"Body":              {"car on footpath"},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://api.twilio.com/media/ME1"},
		"MediaContentType0": {"image/jpeg"},
		"Latitude":          {"18.62"},
		"Longitude":         {"73.87"},
		"Address":           {"Dighi Rd, Pune"},
	}

	msg, err := ParseInbound(webhookRequest(t, form))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}

	if msg.Platform != "whatsapp" || msg.DeliveryID != "SM123" {
		t.Errorf("identity fields: %+v", msg)
	}
	if msg.UserHandle != "whatsapp:+919912345678" || msg.UserName != "Asha" {
		t.Errorf("sender fields: %+v", msg)
	}
	if msg.MediaCount != 1 || msg.MediaURL != "https://api.twilio.com/media/ME1" || msg.MediaContentType != "image/jpeg" {
		t.Errorf("media fields: %+v", msg)
	}
	if !msg.HasLocation() || *msg.Latitude != 18.62 || *msg.Longitude != 73.87 {
		t.Errorf("location fields: %+v", msg)
	}
	if msg.Address != "Dighi Rd, Pune" {
		t.Errorf("Address = %q", msg.Address)
	}
}

func TestParseInboundWithoutOptionalFields(t *testing.T) {
	form := url.Values{
		"MessageSid": {"SM124"},
		"From":       {"whatsapp:+919912345678"},
		"Body":       {"menu"},
		"NumMedia":   {"0"},
	}

	msg, err := ParseInbound(webhookRequest(t, form))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if msg.MediaCount != 0 || msg.MediaURL != "" {
		t.Errorf("media fields: %+v", msg)
	}
	if msg.HasLocation() {
		t.Errorf("location should be absent: %+v", msg)
	}
}

func TestParseInboundPartialLocationIgnored(t *testing.T) {
	form := url.Values{
		"MessageSid": {"SM125"},
		"From":       {"whatsapp:+919912345678"},
		"Latitude":   {"18.62"},
	}
	msg, err := ParseInbound(webhookRequest(t, form))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if msg.HasLocation() {
		t.Error("half a coordinate pair must not count as a location")
	}
}

func TestParseInboundMissingFrom(t *testing.T) {
	if _, err := ParseInbound(webhookRequest(t, url.Values{"Body": {"hi"}})); err == nil {
		t.Fatal("expected error for missing From")
	}
}

func TestTwiML(t *testing.T) {
	got := TwiML(chat.OutboundMessage{Text: "Hello <Asha> & welcome"})
	if !strings.Contains(got, "<Response>") {
		t.Errorf("TwiML = %q, missing Response element", got)
	}
	if !strings.Contains(got, "Hello &lt;Asha&gt; &amp; welcome") {
		t.Errorf("TwiML = %q, want escaped message", got)
	}

	empty := TwiML(chat.OutboundMessage{})
	if strings.Contains(empty, "<Message>") {
		t.Errorf("empty reply TwiML = %q, want bare acknowledgement", empty)
	}
}
