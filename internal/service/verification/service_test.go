package verification

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
)

const sender = "noreply@accounts.mypikpak.com"

func rawMessage(from, body string) string {
	return "From: PikPak <" + from + ">\r\n" +
		"Date: Mon, 17 Mar 2025 10:00:00 +0000\r\n" +
		"Subject: verification\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" + body
}

type fakeMailbox struct {
	loginErr error
	folders  map[string][]string
	selected string
	fetched  []uint32
}

func (f *fakeMailbox) Login(username, password string) error { return f.loginErr }

func (f *fakeMailbox) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	msgs, ok := f.folders[name]
	if !ok {
		return nil, errors.New("no such mailbox")
	}
	f.selected = name
	return &imap.MailboxStatus{Name: name, Messages: uint32(len(msgs))}, nil
}

func (f *fakeMailbox) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	var seqs []uint32
	for i := range f.folders[f.selected] {
		seqs = append(seqs, uint32(i+1))
	}
	return seqs, nil
}

func (f *fakeMailbox) Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	for i, raw := range f.folders[f.selected] {
		seq := uint32(i + 1)
		if !seqset.Contains(seq) {
			continue
		}
		f.fetched = append(f.fetched, seq)
		ch <- &imap.Message{
			SeqNum: seq,
			Body:   map[*imap.BodySectionName]imap.Literal{&imap.BodySectionName{}: bytes.NewBufferString(raw)},
		}
	}
	return nil
}

func (f *fakeMailbox) Logout() error { return nil }

func newTestService(mb *fakeMailbox) *Service {
	s := NewService("imap.example.com:993", sender, time.Second, nil)
	s.dial = func(string, time.Duration) (mailbox, error) { return mb, nil }
	return s
}

func TestFetchFromInbox(t *testing.T) {
	mb := &fakeMailbox{folders: map[string][]string{
		"INBOX": {
			rawMessage(sender, "<p>old code 111111</p>"),
			rawMessage(sender, "<p>Your code is <b>654321</b></p>"),
		},
		"Junk": {},
	}}

	res := newTestService(mb).Fetch(context.Background(), "a@outlook.com", "pw")
	if res.Code != CodeFound || res.VerificationCode != "654321" {
		t.Fatalf("Fetch() = %+v, want newest code 654321", res)
	}
	if res.Time == "" || !strings.Contains(res.Msg, "INBOX") {
		t.Errorf("Fetch() = %+v", res)
	}
	if len(mb.fetched) != 1 || mb.fetched[0] != 2 {
		t.Errorf("fetched = %v, want only [2]", mb.fetched)
	}
}

func TestFetchFallsBackToJunk(t *testing.T) {
	mb := &fakeMailbox{folders: map[string][]string{
		"INBOX": {rawMessage("someone@example.com", "123456")},
		"Junk":  {rawMessage(sender, "code: 987654")},
	}}

	res := newTestService(mb).Fetch(context.Background(), "a@outlook.com", "pw")
	if res.Code != CodeFound || res.VerificationCode != "987654" {
		t.Fatalf("Fetch() = %+v", res)
	}
	if !strings.Contains(res.Msg, "Junk") {
		t.Errorf("msg = %q", res.Msg)
	}
}

func TestFetchNotFound(t *testing.T) {
	mb := &fakeMailbox{folders: map[string][]string{
		"INBOX": {},
		"Junk":  {rawMessage(sender, "no digits here")},
	}}

	res := newTestService(mb).Fetch(context.Background(), "a@outlook.com", "pw")
	if res.Code != CodeNotFound {
		t.Fatalf("Fetch() = %+v, want not found", res)
	}
	if res.VerificationCode != "" {
		t.Errorf("verification_code = %q", res.VerificationCode)
	}
}

func TestFetchAuthFailed(t *testing.T) {
	mb := &fakeMailbox{loginErr: errors.New("LOGIN failed")}

	res := newTestService(mb).Fetch(context.Background(), "a@outlook.com", "bad")
	if res.Code != CodeAuthFailed {
		t.Errorf("Fetch() = %+v, want 401", res)
	}
}

func TestFetchDialError(t *testing.T) {
	s := NewService("imap.example.com:993", sender, time.Second, nil)
	s.dial = func(string, time.Duration) (mailbox, error) { return nil, errors.New("connection refused") }

	res := s.Fetch(context.Background(), "a@outlook.com", "pw")
	if res.Code != CodeError || !strings.Contains(res.Msg, "connection refused") {
		t.Errorf("Fetch() = %+v, want 500", res)
	}
}

func TestExtractCode(t *testing.T) {
	multipartMsg := "From: " + sender + "\r\n" +
		"Date: Tue, 18 Mar 2025 08:00:00 +0000\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"XYZ\"\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain 222222\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"<div style=3D\"color:#333333\">code <b>314159</b></div>\r\n" +
		"--XYZ--\r\n"

	base64Msg := "From: " + sender + "\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"eW91ciBjb2RlIGlz\r\nIDI3MTgyOA==\r\n"

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"html prefers first code", rawMessage(sender, "<p>123456 then 654321</p>"), "123456"},
		{"other sender ignored", rawMessage("x@example.com", "123456"), ""},
		{"seven digits not a code", rawMessage(sender, "1234567"), ""},
		{"multipart prefers html", multipartMsg, "314159"},
		{"base64 body", base64Msg, "271828"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, err := ExtractCode(strings.NewReader(tt.raw), sender)
			if err != nil {
				t.Fatalf("ExtractCode() error = %v", err)
			}
			if code != tt.want {
				t.Errorf("ExtractCode() = %q, want %q", code, tt.want)
			}
		})
	}
}
