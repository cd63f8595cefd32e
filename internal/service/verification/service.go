// Package verification reads the PikPak sign-up code out of a mailbox over IMAP.
package verification

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"pikpakhelper/pkg/logger"
	"pikpakhelper/pkg/metrics"
)

// 结果码
const (
	CodeFound      = 200
	CodeNotFound   = 0
	CodeAuthFailed = 401
	CodeError      = 500
)

// 依次查找的文件夹
var folders = []string{"INBOX", "Junk"}

// 每个文件夹最多检查的邮件数（从新到旧）
const maxMessages = 20

var (
	codePattern = regexp.MustCompile(`\b(\d{6})\b`)
	tagPattern  = regexp.MustCompile(`(?s)<style.*?</style>|<[^>]+>`)
)

// Result is returned to the browser as-is.
type Result struct {
	Code             int    `json:"code"`
	VerificationCode string `json:"verification_code,omitempty"`
	Time             string `json:"time,omitempty"`
	Msg              string `json:"msg"`
}

// mailbox is the part of *client.Client used here.
type mailbox interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

type Service struct {
	server  string
	sender  string
	timeout time.Duration
	dial    func(addr string, timeout time.Duration) (mailbox, error)
	logger  *zap.Logger
}

func NewService(server, sender string, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		server:  server,
		sender:  sender,
		timeout: timeout,
		dial:    dialTLS,
		logger:  logger,
	}
}

func dialTLS(addr string, timeout time.Duration) (mailbox, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	c, err := client.DialWithDialerTLS(&net.Dialer{Timeout: timeout}, addr, &tls.Config{ServerName: host})
	if err != nil {
		return nil, err
	}
	c.Timeout = timeout
	return c, nil
}

// Fetch 先查收件箱，没有找到再查垃圾邮件
func (s *Service) Fetch(ctx context.Context, email, password string) Result {
	log := logger.WithTrace(ctx, s.logger).With(zap.String("email", email))
	start := time.Now()

	var res Result
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return Result{Code: CodeError, Msg: fmt.Sprintf("错误: %v", err)}
		}
		res = s.fetchFolder(email, password, folder)
		if res.Code != CodeNotFound {
			break
		}
	}

	status := "success"
	if res.Code != CodeFound {
		status = "error"
		log.Info("Verification code not fetched", zap.Int("code", res.Code), zap.String("msg", res.Msg))
	}
	metrics.RecordUpstreamCallLatency("imap", status, time.Since(start))
	return res
}

func (s *Service) fetchFolder(email, password, folder string) Result {
	c, err := s.dial(s.server, s.timeout)
	if err != nil {
		return Result{Code: CodeError, Msg: fmt.Sprintf("错误: %v", err)}
	}
	defer c.Logout()

	if err := c.Login(email, password); err != nil {
		return Result{Code: CodeAuthFailed, Msg: "IMAP 认证失败，请检查邮箱和密码是否正确"}
	}

	mbox, err := c.Select(folder, true)
	if err != nil {
		return Result{Code: CodeNotFound, Msg: fmt.Sprintf("无法访问 %s 文件夹", folder)}
	}
	if mbox.Messages == 0 {
		return Result{Code: CodeNotFound, Msg: fmt.Sprintf("%s 文件夹为空", folder)}
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("From", s.sender)
	seqNums, err := c.Search(criteria)
	if err != nil {
		return Result{Code: CodeError, Msg: fmt.Sprintf("错误: %v", err)}
	}

	// 从最新邮件开始
	checked := 0
	for i := len(seqNums) - 1; i >= 0 && checked < maxMessages; i-- {
		checked++
		body, err := fetchBody(c, seqNums[i])
		if err != nil {
			s.logger.Warn("Failed to fetch message", zap.String("folder", folder), zap.Uint32("seq", seqNums[i]), zap.Error(err))
			continue
		}

		code, date, err := ExtractCode(bytes.NewReader(body), s.sender)
		if err != nil || code == "" {
			continue
		}
		return Result{
			Code:             CodeFound,
			VerificationCode: code,
			Time:             date,
			Msg:              fmt.Sprintf("成功获取验证码 (%s)", folder),
		}
	}

	return Result{Code: CodeNotFound, Msg: fmt.Sprintf("%s 中未找到验证码", folder)}
}

func fetchBody(c mailbox, seq uint32) ([]byte, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seq)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var body []byte
	var readErr error
	for msg := range messages {
		if msg == nil || body != nil {
			continue
		}
		if r := msg.GetBody(section); r != nil {
			body, readErr = io.ReadAll(r)
		}
	}
	if err := <-done; err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	if body == nil {
		return nil, errors.New("empty message body")
	}
	return body, nil
}

// ExtractCode parses a raw RFC 822 message. It returns an empty code when the
// message is not from sender or carries no six-digit code.
func ExtractCode(raw io.Reader, sender string) (code, date string, err error) {
	msg, err := mail.ReadMessage(raw)
	if err != nil {
		return "", "", err
	}
	if !strings.Contains(strings.ToLower(msg.Header.Get("From")), strings.ToLower(sender)) {
		return "", "", nil
	}
	date = msg.Header.Get("Date")

	text, err := readText(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return "", date, err
	}

	text = tagPattern.ReplaceAllString(text, " ")
	if m := codePattern.FindStringSubmatch(text); m != nil {
		return m[1], date, nil
	}
	return "", date, nil
}

// readText 返回正文，multipart 时优先 text/html，其次 text/plain
func readText(contentType, encoding string, body io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		b, err := io.ReadAll(decodeTransfer(encoding, body))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	var html, plain string
	mr := multipart.NewReader(body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		partType := part.Header.Get("Content-Type")
		partMedia, _, _ := mime.ParseMediaType(partType)
		switch {
		case strings.HasPrefix(partMedia, "multipart/"):
			nested, err := readText(partType, "", part)
			if err != nil {
				return "", err
			}
			if html == "" {
				html = nested
			}
		case partMedia == "text/html" && html == "":
			b, err := io.ReadAll(decodeTransfer(part.Header.Get("Content-Transfer-Encoding"), part))
			if err != nil {
				return "", err
			}
			html = string(b)
		case partMedia == "text/plain" && plain == "":
			b, err := io.ReadAll(decodeTransfer(part.Header.Get("Content-Transfer-Encoding"), part))
			if err != nil {
				return "", err
			}
			plain = string(b)
		}
	}

	if html != "" {
		return html, nil
	}
	return plain, nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}
