package email

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"fpg-order-system/models"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{}, nil
}

var pdfBytes = []byte("%PDF-1.4 fake assembly drawing")

func queueItem(testing bool) models.QueueItem {
	return models.QueueItem{
		ID:              "FPG-7F3A9C21-1700000000000",
		OrderNumber:     "FPG-7F3A9C21",
		PayPalOrderID:   "PP-1",
		PayPalCaptureID: "CAP-1",
		UserDetails: models.UserDetails{
			FirstName: "Lee", LastName: "Nguyen", Email: "lee@example.com", Phone: "0400000000",
			AddressLine1: "1 Depot Rd", City: "Dubbo", State: "NSW", Postcode: "2830", Country: "Australia",
		},
		WebsiteProducts: []models.LineItem{
			{ID: "W1", Name: "Hose clamp", Quantity: 3, Price: decimal.RequireFromString("4.00"), SKU: "HC-10"},
		},
		PWAOrders: []models.LineItem{
			{ID: "A1", Name: "1/2in hose assembly", Quantity: 1, Price: decimal.RequireFromString("88.00"),
				PDF: &models.PDFAttachment{Filename: "assembly.pdf", Data: base64.StdEncoding.EncodeToString(pdfBytes)}},
		},
		Trac360Orders: []models.LineItem{
			{ID: "T1", Name: "Loader valve kit", Quantity: 1, Price: decimal.RequireFromString("8.00"),
				PDF: &models.PDFAttachment{Data: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdfBytes)}},
			{ID: "T2", Name: "Broken PDF", Quantity: 1, Price: decimal.Zero,
				PDF: &models.PDFAttachment{Filename: "bad.pdf", Data: "%%%not-base64"}},
		},
		Totals: models.Totals{
			Subtotal: decimal.RequireFromString("108.00"),
			GST:      decimal.RequireFromString("10.80"),
			Total:    decimal.RequireFromString("118.80"),
		},
		TestingMode: testing,
		AddedAt:     time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
	}
}

func newComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer(ComposerConfig{
		StoreName:          "FPG Hydraulics",
		InternalRecipients: []string{"orders@fpg.example"},
		TestInbox:          "dev@fpg.example",
	})
	require.NoError(t, err)
	return c
}

func TestCustomerConfirmation(t *testing.T) {
	c := newComposer(t)
	msg, err := c.CustomerConfirmation(queueItem(false))
	require.NoError(t, err)

	assert.Equal(t, []string{"lee@example.com"}, msg.To)
	assert.Equal(t, "Your FPG Hydraulics order FPG-7F3A9C21", msg.Subject)
	assert.Contains(t, msg.HTML, "FPG-7F3A9C21")
	assert.Contains(t, msg.HTML, "$118.80")
	assert.Contains(t, msg.Text, "3 x Hose clamp (HC-10)")
	assert.Contains(t, msg.Text, "Total:    $118.80 AUD")
	assert.NotContains(t, msg.HTML, "TEST ORDER")
	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "assembly.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, pdfBytes, msg.Attachments[0].Data)
	assert.Equal(t, "FPG-7F3A9C21-T1.pdf", msg.Attachments[1].Filename)
}

func TestInternalNotification(t *testing.T) {
	c := newComposer(t)
	msg, err := c.InternalNotification(queueItem(false))
	require.NoError(t, err)

	assert.Equal(t, []string{"orders@fpg.example"}, msg.To)
	assert.Equal(t, "lee@example.com", msg.ReplyTo)
	assert.Contains(t, msg.Subject, "FPG-7F3A9C21")
	assert.Contains(t, msg.Subject, "118.80")
	assert.Contains(t, msg.Text, "Capture: CAP-1")
	assert.Contains(t, msg.Text, "Custom hose assembly")
}

func TestTestingModeGoesToTestInbox(t *testing.T) {
	c := newComposer(t)

	for _, render := range []func(models.QueueItem) (Message, error){c.CustomerConfirmation, c.InternalNotification} {
		msg, err := render(queueItem(true))
		require.NoError(t, err)
		assert.Equal(t, []string{"dev@fpg.example"}, msg.To)
		assert.True(t, strings.HasPrefix(msg.Subject, "[TEST] "))
		assert.Contains(t, msg.Text, "TEST ORDER")
	}
}

func TestTestingModeWithoutInbox(t *testing.T) {
	c, err := NewComposer(ComposerConfig{InternalRecipients: []string{"orders@fpg.example"}})
	require.NoError(t, err)

	_, err = c.CustomerConfirmation(queueItem(true))
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestMissingRecipients(t *testing.T) {
	c, err := NewComposer(ComposerConfig{})
	require.NoError(t, err)

	_, err = c.InternalNotification(queueItem(false))
	assert.ErrorIs(t, err, ErrNoRecipients)

	item := queueItem(false)
	item.UserDetails.Email = ""
	_, err = c.CustomerConfirmation(item)
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestHTMLIsEscaped(t *testing.T) {
	c := newComposer(t)
	item := queueItem(false)
	item.WebsiteProducts[0].Name = "<script>alert(1)</script>"

	msg, err := c.CustomerConfirmation(item)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
}

func TestBuildMIME(t *testing.T) {
	raw, err := BuildMIME("shop@fpg.example", Message{
		To:      []string{"a@example.com", "b@example.com"},
		ReplyTo: "c@example.com",
		Subject: "Order FPG-1",
		HTML:    "<p>hello</p>",
		Text:    "hello",
		Attachments: []Attachment{
			{Filename: "drawing.pdf", ContentType: "application/pdf", Data: pdfBytes},
		},
	})
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "shop@fpg.example", parsed.Header.Get("From"))
	assert.Equal(t, "a@example.com, b@example.com", parsed.Header.Get("To"))
	assert.Equal(t, "c@example.com", parsed.Header.Get("Reply-To"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])

	bodyPart, err := reader.NextPart()
	require.NoError(t, err)
	altType, _, err := mime.ParseMediaType(bodyPart.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", altType)

	attachment, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "drawing.pdf", attachment.FileName())
	encoded, err := io.ReadAll(attachment)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, decoded)

	_, err = reader.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSESSenderSimpleAndRaw(t *testing.T) {
	fake := &fakeSES{}
	sender, err := NewSESSenderWithClient(fake, "shop@fpg.example")
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "hi", Text: "body"}))
	require.Len(t, fake.inputs, 1)
	require.NotNil(t, fake.inputs[0].Content.Simple)
	assert.Nil(t, fake.inputs[0].Content.Raw)
	assert.Equal(t, "hi", *fake.inputs[0].Content.Simple.Subject.Data)
	assert.Equal(t, "shop@fpg.example", *fake.inputs[0].FromEmailAddress)

	require.NoError(t, sender.Send(context.Background(), Message{
		To: []string{"a@example.com"}, Subject: "with pdf", Text: "body",
		Attachments: []Attachment{{Filename: "x.pdf", Data: pdfBytes}},
	}))
	require.Len(t, fake.inputs, 2)
	require.NotNil(t, fake.inputs[1].Content.Raw)
	assert.Contains(t, string(fake.inputs[1].Content.Raw.Data), "x.pdf")
}

func TestSESSenderErrors(t *testing.T) {
	_, err := NewSESSenderWithClient(&fakeSES{}, "")
	assert.Error(t, err)

	fake := &fakeSES{err: errors.New("throttled")}
	sender, err := NewSESSenderWithClient(fake, "shop@fpg.example")
	require.NoError(t, err)

	err = sender.Send(context.Background(), Message{To: []string{"a@example.com"}, Text: "x"})
	assert.ErrorContains(t, err, "throttled")

	err = sender.Send(context.Background(), Message{Text: "x"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestBreakerSender(t *testing.T) {
	calls := 0
	failing := SenderFunc(func(ctx context.Context, msg Message) error {
		calls++
		return errors.New("smtp down")
	})

	var transitions []string
	breaker := NewBreakerSender(failing, BreakerSettings{
		ConsecutiveFailures: 2,
		OpenTimeout:         time.Hour,
		OnStateChange:       func(from, to string) { transitions = append(transitions, from+"->"+to) },
	})

	ctx := context.Background()
	assert.ErrorContains(t, breaker.Send(ctx, Message{}), "smtp down")
	assert.ErrorContains(t, breaker.Send(ctx, Message{}), "smtp down")
	assert.Equal(t, "open", breaker.State())

	err := breaker.Send(ctx, Message{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreakerSenderPassesSuccess(t *testing.T) {
	var got Message
	ok := SenderFunc(func(ctx context.Context, msg Message) error {
		got = msg
		return nil
	})
	breaker := NewBreakerSender(ok, BreakerSettings{})

	require.NoError(t, breaker.Send(context.Background(), Message{Subject: "s"}))
	assert.Equal(t, "s", got.Subject)
	assert.Equal(t, "closed", breaker.State())
}
