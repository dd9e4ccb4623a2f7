package mailer

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/jpeduti/gestiondehoras/internal/config"
)

// Mailer envía los correos transaccionales del sistema por SMTP.
// Con SMTP sin configurar queda en modo log: útil en desarrollo,
// donde el enlace mágico se copia de la consola.
type Mailer struct {
	cfg config.SMTPConfig
}

func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// EnviarEnlaceMagico manda la invitación con el enlace de acceso.
func (m *Mailer) EnviarEnlaceMagico(email, nombre, enlace string) error {
	if !m.cfg.Enabled() {
		log.Info().Str("email", email).Str("enlace", enlace).Msg("smtp deshabilitado, enlace mágico solo en log")
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.Sender)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Invitación a Gestión de Horas")
	msg.SetBody("text/html", fmt.Sprintf(
		"<p>Hola %s,</p><p>Te invitaron a Gestión de Horas. Entra con este enlace para completar tu registro:</p><p><a href=%q>%s</a></p><p>El enlace caduca en 24 horas.</p>",
		nombre, enlace, enlace,
	))

	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Sender, m.cfg.Password)
	return d.DialAndSend(msg)
}
