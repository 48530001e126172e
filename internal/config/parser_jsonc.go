package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	AgentID   *string         `json:"agent_id"`
	APIKey    *string         `json:"api_key"`
	ConvAIURL *string         `json:"convai_url"`
	Analysis  *jsoncAnalysis  `json:"analysis"`
	Session   *jsoncSession   `json:"session"`
	Audio     *jsoncAudio     `json:"audio"`
	Indicator *jsoncIndicator `json:"indicator"`
	Telemetry *jsoncTelemetry `json:"telemetry"`
	Debug     *jsoncDebug     `json:"debug"`
}

type jsoncAnalysis struct {
	BaseURL    *string `json:"base_url"`
	HealthGRPC *string `json:"health_grpc"`
}

type jsoncSession struct {
	SettleDelayMS *int `json:"settle_delay_ms"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncIndicator struct {
	Enable              *bool   `json:"enable"`
	DesktopAppName      *string `json:"desktop_app_name"`
	SoundEnable         *bool   `json:"sound_enable"`
	SoundConnectFile    *string `json:"sound_connect_file"`
	SoundDisconnectFile *string `json:"sound_disconnect_file"`
	SoundResultFile     *string `json:"sound_result_file"`
	SoundErrorFile      *string `json:"sound_error_file"`
	ErrorTimeoutMS      *int    `json:"error_timeout_ms"`
}

type jsoncTelemetry struct {
	Stdout *bool `json:"stdout"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	setString(&cfg.AgentID, payload.AgentID)
	setString(&cfg.APIKey, payload.APIKey)
	setString(&cfg.ConvAIURL, payload.ConvAIURL)

	if a := payload.Analysis; a != nil {
		setString(&cfg.Analysis.BaseURL, a.BaseURL)
		setString(&cfg.Analysis.HealthGRPC, a.HealthGRPC)
	}

	if s := payload.Session; s != nil && s.SettleDelayMS != nil {
		cfg.Session.SettleDelayMS = *s.SettleDelayMS
	}

	if a := payload.Audio; a != nil {
		if a.Input != nil {
			cfg.Audio.Input = *a.Input
		}
		if a.Fallback != nil {
			cfg.Audio.Fallback = *a.Fallback
		}
	}

	if ind := payload.Indicator; ind != nil {
		if ind.Enable != nil {
			cfg.Indicator.Enable = *ind.Enable
		}
		setString(&cfg.Indicator.DesktopAppName, ind.DesktopAppName)
		if ind.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *ind.SoundEnable
		}
		setString(&cfg.Indicator.SoundConnectFile, ind.SoundConnectFile)
		setString(&cfg.Indicator.SoundDisconnectFile, ind.SoundDisconnectFile)
		setString(&cfg.Indicator.SoundResultFile, ind.SoundResultFile)
		setString(&cfg.Indicator.SoundErrorFile, ind.SoundErrorFile)
		if ind.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *ind.ErrorTimeoutMS
		}
	}

	if payload.Telemetry != nil && payload.Telemetry.Stdout != nil {
		cfg.Telemetry.Stdout = *payload.Telemetry.Stdout
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}
}

// setString trims and assigns when the key was present.
func setString(dst *string, src *string) {
	if src == nil {
		return
	}
	*dst = strings.TrimSpace(*src)
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
