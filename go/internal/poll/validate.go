package poll

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxRoomCodeLength = 64
	MaxUserNameLength = 50
)

var roomCodeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// normalizeRoomCode trims and checks a room code. Codes are used as
// subject tokens downstream, so only letters, digits, '-' and '_' pass
func normalizeRoomCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", invalidRequest("Room code is required.")
	}
	if len(code) > MaxRoomCodeLength {
		return "", invalidRequest(fmt.Sprintf("Room code is too long (max %d characters).", MaxRoomCodeLength))
	}
	if !roomCodeRegex.MatchString(code) {
		return "", invalidRequest("Room code may only contain letters, digits, '-' and '_'.")
	}
	return code, nil
}

// normalizeUserName trims a display name. Names stay case-sensitive
func normalizeUserName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalidRequest("User name is required.")
	}
	if utf8.RuneCountInString(name) > MaxUserNameLength {
		return "", invalidRequest(fmt.Sprintf("User name is too long (max %d characters).", MaxUserNameLength))
	}
	return name, nil
}
