package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// databaseInfo describes a DSN without its credentials, for startup logs.
type databaseInfo struct {
	Type        string
	Host        string
	Port        int
	User        string
	Name        string
	SSLMode     string
	Path        string
	PasswordSet bool
}

func (i databaseInfo) String() string {
	if i.Type == "sqlite" {
		return fmt.Sprintf("sqlite path=%s", i.Path)
	}
	return fmt.Sprintf("postgres host=%s port=%d user=%s db=%s sslmode=%s password_set=%t",
		i.Host, i.Port, i.User, i.Name, i.SSLMode, i.PasswordSet)
}

func describeDSN(dsn string) (databaseInfo, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return databaseInfo{}, fmt.Errorf("empty dsn")
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, ":memory:") {
		return databaseInfo{Type: "sqlite", Path: ":memory:"}, nil
	}
	if strings.HasPrefix(lowered, "file:") {
		pathPart := trimmed[len("file:"):]
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return databaseInfo{Type: "sqlite", Path: strings.TrimSpace(pathPart)}, nil
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return databaseInfo{}, fmt.Errorf("parse dsn: %w", errParse)
	}

	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		port := 5432
		if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
			parsedPort, errPort := strconv.Atoi(rawPort)
			if errPort != nil {
				return databaseInfo{}, fmt.Errorf("parse port: %w", errPort)
			}
			port = parsedPort
		}

		username := ""
		passwordSet := false
		if u.User != nil {
			username = strings.TrimSpace(u.User.Username())
			_, passwordSet = u.User.Password()
		}

		sslMode := strings.TrimSpace(u.Query().Get("sslmode"))
		if sslMode == "" {
			sslMode = "disable"
		}

		return databaseInfo{
			Type:        "postgres",
			Host:        strings.TrimSpace(u.Hostname()),
			Port:        port,
			User:        username,
			Name:        strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
			SSLMode:     sslMode,
			PasswordSet: passwordSet,
		}, nil
	default:
		return databaseInfo{}, fmt.Errorf("unsupported dsn scheme")
	}
}
