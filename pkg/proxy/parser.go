package proxy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultParser turns a raw supply response into a proxy address.
//
// Supported formats:
//   - plain text: "218.95.37.11:25152", one proxy per line
//   - plain text with auth: "218.95.37.11:25152:username:password"
//   - scheme-prefixed URLs: "http://...", "socks5://..."
//   - JSON: {"proxy": "http://1.2.3.4:8080"}
//   - JSON: {"ip": "1.2.3.4", "port": "8080"} with optional username/password
//   - JSON: {"data": {...}} or {"data": [...]} wrapping any of the above
func DefaultParser(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("proxy: empty supply response")
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		switch v := decoded.(type) {
		case map[string]interface{}:
			return parseObject(v)
		case string:
			return parseText(v)
		}
		// Other JSON scalars (numbers, bools) are not descriptors.
		return "", fmt.Errorf("proxy: unable to parse supply response: %s", preview(trimmed))
	}

	return parseText(trimmed)
}

// parseText handles plain-text descriptors, taking the first non-empty line.
func parseText(text string) (string, error) {
	var line string
	for _, candidate := range strings.Split(text, "\n") {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			line = candidate
			break
		}
	}
	if line == "" {
		return "", fmt.Errorf("proxy: empty supply response")
	}

	for _, scheme := range []string{"http://", "https://", "socks4://", "socks5://"} {
		if strings.HasPrefix(line, scheme) {
			rest := line[len(scheme):]
			if !strings.Contains(rest, ":") {
				return "", fmt.Errorf("proxy: invalid descriptor (missing port): %s", line)
			}
			return line, nil
		}
	}

	parts := strings.Split(line, ":")
	switch len(parts) {
	case 2:
		host, port := parts[0], parts[1]
		if err := validatePort(port); err != nil {
			return "", fmt.Errorf("proxy: invalid descriptor %q: %w", line, err)
		}
		return fmt.Sprintf("http://%s:%s", host, port), nil
	case 4:
		host, port, username, password := parts[0], parts[1], parts[2], parts[3]
		if err := validatePort(port); err != nil {
			return "", fmt.Errorf("proxy: invalid descriptor %q: %w", line, err)
		}
		return fmt.Sprintf("http://%s:%s@%s:%s", username, password, host, port), nil
	default:
		return "", fmt.Errorf("proxy: invalid descriptor: %s", line)
	}
}

// parseObject handles the JSON descriptor shapes.
func parseObject(obj map[string]interface{}) (string, error) {
	if proxyVal, ok := obj["proxy"].(string); ok && proxyVal != "" {
		return proxyVal, nil
	}

	data, ok := obj["data"]
	if !ok {
		data = obj
	}

	if list, ok := data.([]interface{}); ok {
		if len(list) == 0 {
			return "", fmt.Errorf("proxy: supply returned empty data array")
		}
		switch first := list[0].(type) {
		case string:
			return parseText(first)
		case map[string]interface{}:
			data = first
		default:
			return "", fmt.Errorf("proxy: unable to parse supply data element")
		}
	}

	entry, ok := data.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("proxy: unable to parse supply response")
	}

	ip := stringField(entry, "ip")
	port := stringField(entry, "port")
	if ip == "" || port == "" {
		return "", fmt.Errorf("proxy: supply response missing ip/port")
	}
	if err := validatePort(port); err != nil {
		return "", fmt.Errorf("proxy: invalid supply port %q: %w", port, err)
	}

	username := stringField(entry, "username")
	password := stringField(entry, "password")
	if username != "" && password != "" {
		return fmt.Sprintf("http://%s:%s@%s:%s", username, password, ip, port), nil
	}
	return fmt.Sprintf("http://%s:%s", ip, port), nil
}

// stringField reads a JSON value that may be a string or a number.
func stringField(obj map[string]interface{}, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port is not a number")
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port %d out of range", n)
	}
	return nil
}

func preview(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
