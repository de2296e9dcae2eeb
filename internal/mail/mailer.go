package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/CopperGroup/bytecraft/internal/config"
	"github.com/CopperGroup/bytecraft/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tmplAskForReview   = "ask_for_review.html"
	tmplThankYou       = "thank_you_for_review.html"
	tmplWelcome        = "welcome.html"
	tmplOrderConfirmed = "order_confirmation.html"
)

// Mailer renders the store's transactional emails and hands them to a Sender.
type Mailer struct {
	sender    Sender
	cfg       config.MailConfig
	templates *template.Template
}

func New(sender Sender, cfg config.MailConfig) (*Mailer, error) {
	tmpl, err := template.New("mail").Funcs(template.FuncMap{
		"date": func(t time.Time) string { return t.Format("02.01.2006") },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}

	return &Mailer{sender: sender, cfg: cfg, templates: tmpl}, nil
}

type storeData struct {
	Name   string
	Email  string
	Domain string
	Year   int
}

func (m *Mailer) store() storeData {
	return storeData{
		Name:   m.cfg.StoreName,
		Email:  m.cfg.StoreEmail,
		Domain: m.cfg.StoreDomain,
		Year:   time.Now().Year(),
	}
}

func (m *Mailer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// reviewURL points at the review form of the order's first product.
func (m *Mailer) reviewURL(order *models.Order) string {
	if len(order.Items) == 0 {
		return m.cfg.StoreDomain
	}
	item := order.Items[0]

	q := url.Values{}
	q.Set("name", item.Name)
	q.Set("u", order.Customer.Email)
	return m.cfg.StoreDomain + "/catalog/" + strconv.FormatInt(item.ProductID, 10) + "/review?" + q.Encode()
}

func (m *Mailer) SendAskForReview(ctx context.Context, order *models.Order) error {
	html, err := m.render(tmplAskForReview, struct {
		Store     storeData
		Name      string
		ReviewURL string
	}{m.store(), order.Customer.Name, m.reviewURL(order)})
	if err != nil {
		return err
	}

	return m.sender.Send(ctx, Message{
		FromName: m.cfg.StoreName,
		From:     m.cfg.ThankYou,
		To:       order.Customer.Email,
		Subject:  "Важлива інформація | " + m.cfg.StoreName,
		HTML:     html,
	})
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	html, err := m.render(tmplOrderConfirmed, struct {
		Store storeData
		Order *models.Order
	}{m.store(), order})
	if err != nil {
		return err
	}

	return m.sender.Send(ctx, Message{
		FromName: m.cfg.StoreName,
		From:     m.cfg.StoreEmail,
		To:       order.Customer.Email,
		Subject:  fmt.Sprintf("Замовлення %s прийнято | %s", order.OrderNumber, m.cfg.StoreName),
		HTML:     html,
	})
}

func (m *Mailer) SendThankYouForReview(ctx context.Context, to, name, productName string, code *models.PromoCode) error {
	html, err := m.render(tmplThankYou, struct {
		Store       storeData
		Name        string
		ProductName string
		Promo       *models.PromoCode
	}{m.store(), name, productName, code})
	if err != nil {
		return err
	}

	return m.sender.Send(ctx, Message{
		FromName: m.cfg.StoreName,
		From:     m.cfg.ThankYou,
		To:       to,
		Subject:  "Дякуємо вам за ваш відгук | " + m.cfg.StoreName,
		HTML:     html,
	})
}

func (m *Mailer) SendWelcome(ctx context.Context, to string, code *models.PromoCode) error {
	html, err := m.render(tmplWelcome, struct {
		Store storeData
		To    string
		Promo *models.PromoCode
	}{m.store(), to, code})
	if err != nil {
		return err
	}

	return m.sender.Send(ctx, Message{
		FromName: m.cfg.StoreName,
		From:     m.cfg.StoreEmail,
		To:       to,
		Subject:  "Ласкаво просимо до " + m.cfg.StoreName + "!",
		HTML:     html,
	})
}
