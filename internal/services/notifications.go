package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/clinic-api/internal/models"
)

const textbeltURL = "https://textbelt.com/text"

// Notifier tells patients about their appointments. Implementations must not
// block the request that triggered them.
type Notifier interface {
	NotifyAppointment(patient *models.Patient, apt *models.Appointment)
}

type NoopNotifier struct{}

func (NoopNotifier) NotifyAppointment(*models.Patient, *models.Appointment) {}

// SMSNotifier sends appointment SMS through Textbelt in the background.
type SMSNotifier struct {
	apiKey   string
	endpoint string
	client   *http.Client
	log      zerolog.Logger
	wg       sync.WaitGroup
}

func NewSMSNotifier(apiKey string, log zerolog.Logger) *SMSNotifier {
	return &SMSNotifier{
		apiKey:   apiKey,
		endpoint: textbeltURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

func (s *SMSNotifier) NotifyAppointment(patient *models.Patient, apt *models.Appointment) {
	if patient == nil || patient.Phone == "" {
		s.log.Debug().Msg("sms not sent: patient has no phone number")
		return
	}
	msg := appointmentMessage(apt)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.send(ctx, patient.Phone, msg); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", apt.ID.Hex()).Msg("sms not delivered")
			return
		}
		s.log.Info().Str("appointment_id", apt.ID.Hex()).Msg("sms sent")
	}()
}

// Wait blocks until in-flight messages are done. Called on shutdown.
func (s *SMSNotifier) Wait() { s.wg.Wait() }

func (s *SMSNotifier) send(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
		"key":     s.apiKey,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("textbelt request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("textbelt response (status %d): %w", resp.StatusCode, err)
	}
	if !result.Success {
		return fmt.Errorf("textbelt rejected message: %s", result.Error)
	}
	return nil
}

func appointmentMessage(apt *models.Appointment) string {
	when := apt.Date.Format("Jan 2") + " at " + apt.Time
	if apt.Status == models.StatusCancelled {
		return fmt.Sprintf("Appointment Cancelled: %s on %s.", apt.PatientName, when)
	}
	return fmt.Sprintf("Appointment Confirmed: %s on %s.", apt.PatientName, when)
}
