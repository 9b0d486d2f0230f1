package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type CustomJSONFormatter struct {
	TimestampFormat string
	PrettyPrint     bool
	AppName         string
	Version         string
}

type CustomTextFormatter struct {
	TimestampFormat string
	ForceColors     bool
	DisableColors   bool
	AppName         string
	Version         string
}

func (f *CustomJSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(map[string]interface{})

	// Add timestamp
	timestampFormat := f.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = time.RFC3339
	}
	data["timestamp"] = entry.Time.Format(timestampFormat)

	// Add level
	data["level"] = entry.Level.String()

	// Add message
	data["message"] = entry.Message

	// Add app info
	if f.AppName != "" {
		data["app"] = f.AppName
	}
	if f.Version != "" {
		data["version"] = f.Version
	}

	// Add caller info
	if entry.HasCaller() {
		data["caller"] = fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line)
		data["function"] = entry.Caller.Function
	}

	// Add fields
	for k, v := range entry.Data {
		data[k] = v
	}

	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	encoder := json.NewEncoder(b)
	if f.PrettyPrint {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(data); err != nil {
		return nil, fmt.Errorf("failed to marshal fields to JSON: %w", err)
	}

	return b.Bytes(), nil
}

func (f *CustomTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	// Timestamp
	timestampFormat := f.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = "2006-01-02 15:04:05"
	}

	// Color codes
	var levelColor string
	if !f.DisableColors && (f.ForceColors || isTerminal()) {
		switch entry.Level {
		case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
			levelColor = "\033[31m" // Red
		case logrus.WarnLevel:
			levelColor = "\033[33m" // Yellow
		case logrus.InfoLevel:
			levelColor = "\033[36m" // Cyan
		case logrus.DebugLevel:
			levelColor = "\033[37m" // White
		default:
			levelColor = "\033[0m" // Reset
		}
	}

	// Format log entry
	fmt.Fprintf(b, "%s[%s%s%s] ",
		entry.Time.Format(timestampFormat),
		levelColor,
		strings.ToUpper(entry.Level.String()),
		"\033[0m", // Reset color
	)

	// Add app info
	if f.AppName != "" {
		fmt.Fprintf(b, "[%s] ", f.AppName)
	}

	// Add caller info
	if entry.HasCaller() {
		fmt.Fprintf(b, "[%s:%d] ", entry.Caller.File, entry.Caller.Line)
	}

	// Add message
	fmt.Fprintf(b, "%s", entry.Message)

	// Add fields
	if len(entry.Data) > 0 {
		fields := make([]string, 0, len(entry.Data))
		for k, v := range entry.Data {
			fields = append(fields, fmt.Sprintf("%s=%v", k, v))
		}
		sort.Strings(fields)
		fmt.Fprintf(b, " %s", strings.Join(fields, " "))
	}

	b.WriteByte('\n')

	return b.Bytes(), nil
}

// Check if output is a terminal
func isTerminal() bool {
	// Simplified check - in production, use a proper terminal detection library
	return false
}

// Audit logger for compliance and security
type AuditLogger struct {
	logger *Logger
}

func NewAuditLogger(config *Config) (*AuditLogger, error) {
	// Force JSON format for audit logs
	config.Format = "json"

	logger, err := NewLogger(config)
	if err != nil {
		return nil, err
	}

	return &AuditLogger{
		logger: logger,
	}, nil
}

func (a *AuditLogger) LogAction(action, resource string, clientID string, details map[string]interface{}) {
	fields := map[string]interface{}{
		"action":    action,
		"resource":  resource,
		"timestamp": time.Now().UTC(),
		"type":      "audit",
	}

	if clientID != "" {
		fields["client_id"] = clientID
	}

	for k, v := range details {
		fields[k] = v
	}

	a.logger.WithFields(fields).Info("Audit log entry")
}

func (a *AuditLogger) LogAuthEvent(eventType string, clientID string, ipAddress, userAgent string, success bool) {
	fields := map[string]interface{}{
		"event_type": eventType,
		"ip_address": ipAddress,
		"user_agent": userAgent,
		"success":    success,
		"type":       "auth_event",
	}

	if clientID != "" {
		fields["client_id"] = clientID
	}

	a.logger.WithFields(fields).Info("Authentication event logged")
}
