// Package queue also contains the background consumer that listens to the
// booking.confirmed queue and delivers ticket emails.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartTicketEmailConsumer connects to RabbitMQ, declares the
// booking.confirmed queue (durable), and starts consuming messages.  Each
// message is rendered into a ticket email and delivered via SMTP when
// SMTP_HOST is configured; otherwise the rendered mail is appended to
// logs/email.log so local runs still show what would have been sent.  The
// function runs a reconnect loop; processing errors are logged and the
// offending message rejected so the server continues operating.
func StartTicketEmailConsumer() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("email-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("email-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("email-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(BookingConfirmedQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			log.Printf("email-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	subject, text := renderTicket(ev)
	return deliver(ev.UserEmail, subject, text)
}

// renderTicket formats the confirmation email body for a booking.
func renderTicket(ev BookingConfirmedEvent) (subject, text string) {
	seats := "unassigned"
	if len(ev.SeatLabels) > 0 {
		seats = strings.Join(ev.SeatLabels, ", ")
	}
	subject = fmt.Sprintf("Your tickets for %s", ev.EventName)
	text = fmt.Sprintf(
		"Hi %s,\n\nYour booking #%d is confirmed.\n\nEvent: %s\nCategory: %s\nSeats (%d): %s\nTotal: %.2f\nBooked at: %s\n\nSee you there!\n",
		ev.UserName, ev.BookingID, ev.EventName, ev.CategoryName,
		ev.SeatsBooked, seats, float64(ev.TotalCents)/100, ev.BookedAt)
	return subject, text
}

// deliver sends the mail over SMTP when SMTP_HOST is set, otherwise
// appends it to logs/email.log.
func deliver(to, subject, text string) error {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return appendToLog(to, subject, text)
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	from := os.Getenv("SMTP_FROM")
	var auth smtp.Auth
	if user := os.Getenv("SMTP_USER"); user != "" {
		auth = smtp.PlainAuth("", user, os.Getenv("SMTP_PASS"), host)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, to, subject, text)
	return smtp.SendMail(host+":"+port, auth, from, []string{to}, []byte(msg))
}

func appendToLog(to, subject, text string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "email.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] to=%s subject=%q\n%s\n", time.Now().UTC().Format(time.RFC3339), to, subject, text)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
