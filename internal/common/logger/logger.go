package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Структура лога
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	App       string `json:"app"`
	Role      string `json:"role,omitempty"`
	Action    string `json:"action"`
	Message   string `json:"message"`
	Hostname  string `json:"hostname"`
	SessionID string `json:"session_id,omitempty"`
	RideID    string `json:"ride_id,omitempty"`
	Error     *struct {
		Msg string `json:"msg"`
	} `json:"error,omitempty"`
}

var hostname, _ = os.Hostname()

// Имя приложения (устанавливается при старте)
var appName = "ride-hail-client"

var roleName = ""

func SetAppName(name string) {
	appName = name
}

func SetRole(role string) {
	roleName = role
}

func Info(action, message, sessionID, rideID string) {
	output(LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     "INFO",
		App:       appName,
		Role:      roleName,
		Action:    action,
		Message:   message,
		Hostname:  hostname,
		SessionID: sessionID,
		RideID:    rideID,
	})
}

func Debug(action, message, sessionID, rideID string) {
	output(LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     "DEBUG",
		App:       appName,
		Role:      roleName,
		Action:    action,
		Message:   message,
		Hostname:  hostname,
		SessionID: sessionID,
		RideID:    rideID,
	})
}

func Warn(action, message, sessionID, rideID, errMsg string) {
	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     "WARN",
		App:       appName,
		Role:      roleName,
		Action:    action,
		Message:   message,
		Hostname:  hostname,
		SessionID: sessionID,
		RideID:    rideID,
	}
	if errMsg != "" {
		entry.Error = &struct {
			Msg string `json:"msg"`
		}{Msg: errMsg}
	}
	output(entry)
}

func Error(action, message, sessionID, rideID, errMsg string) {
	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     "ERROR",
		App:       appName,
		Role:      roleName,
		Action:    action,
		Message:   message,
		Hostname:  hostname,
		SessionID: sessionID,
		RideID:    rideID,
		Error: &struct {
			Msg string `json:"msg"`
		}{Msg: errMsg},
	}
	output(entry)
}

// Вспомогательная функция для вывода JSON в stdout
func output(entry LogEntry) {
	jsonData, _ := json.Marshal(entry)
	fmt.Println(string(jsonData))
}
