package utils

import (
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
)

// ResponseHandler provides standardized response methods for commands and components
type ResponseHandler struct{}

var EH = &ResponseHandler{}

// ErrorType represents different categories of errors for consistent handling
type ErrorType int

const (
	// UserError - validation failures the user can fix
	UserError ErrorType = iota
	// SystemError - storage, network or timeout failures; retrying is safe
	SystemError
	// NotFoundError - unknown habit or user
	NotFoundError
	// DuplicateError - the action was already applied; not a failure
	DuplicateError
	// RateLimitError - too many interactions in the window
	RateLimitError
)

// ErrRateLimited is returned by the interaction chain when a user is throttled.
var ErrRateLimited = errors.New("rate limited")

const systemErrorMessage = "Something went wrong on our side. Nothing was recorded, so it is safe to try again."

func getErrorPrefix(errorType ErrorType) string {
	switch errorType {
	case UserError:
		return "⚠️"
	case SystemError:
		return "🔧"
	case NotFoundError:
		return "🔍"
	case DuplicateError:
		return "✅"
	case RateLimitError:
		return "⏰"
	default:
		return "❌"
	}
}

func getErrorColor(errorType ErrorType) int {
	switch errorType {
	case UserError, RateLimitError:
		return config.WarningColor
	case NotFoundError, DuplicateError:
		return config.InfoColor
	default:
		return config.ErrorColor
	}
}

// Classify maps an error to its category and the message shown to the user.
// Infrastructure details never reach the user.
func Classify(err error) (ErrorType, string) {
	var (
		ve *progress.ValidationError
		de *progress.DuplicateActionError
		ne *progress.NotFoundError
	)
	switch {
	case errors.As(err, &de):
		if de.Reason == progress.ReasonAlreadyCompletedToday {
			return DuplicateError, "Already done today. Come back tomorrow to keep the streak going!"
		}
		return DuplicateError, "Already recorded."
	case errors.As(err, &ve):
		return UserError, ve.Reason
	case errors.As(err, &ne):
		return NotFoundError, fmt.Sprintf("That %s does not exist or is not yours.", ne.Entity)
	case errors.Is(err, ErrRateLimited):
		return RateLimitError, "You are going a bit fast. Please wait a moment."
	default:
		return SystemError, systemErrorMessage
	}
}

func errorEmbed(errorType ErrorType, message string) discord.Embed {
	return discord.Embed{
		Description: getErrorPrefix(errorType) + " " + message,
		Color:       getErrorColor(errorType),
	}
}

// HandleError replies to a command or component event with the classified
// error. The reply is ephemeral.
func (h *ResponseHandler) HandleError(event interface{}, err error) error {
	errorType, message := Classify(err)
	msg := discord.MessageCreate{
		Embeds: []discord.Embed{errorEmbed(errorType, message)},
		Flags:  discord.MessageFlagEphemeral,
	}
	switch e := event.(type) {
	case *handler.CommandEvent:
		return e.CreateMessage(msg)
	case *handler.ComponentEvent:
		return e.CreateMessage(msg)
	default:
		return fmt.Errorf("unsupported event type for error handling")
	}
}

// UpdateWithError replaces a deferred command response with the classified error.
func (h *ResponseHandler) UpdateWithError(event *handler.CommandEvent, err error) error {
	errorType, message := Classify(err)
	_, uerr := event.UpdateInteractionResponse(discord.MessageUpdate{
		Embeds: &[]discord.Embed{errorEmbed(errorType, message)},
	})
	return uerr
}

func (h *ResponseHandler) CreateSuccessEmbed(event *handler.CommandEvent, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: "✅ " + message,
			Color:       config.SuccessColor,
		}},
		Flags: discord.MessageFlagEphemeral,
	})
}

func (h *ResponseHandler) CreateInfoEmbed(event *handler.CommandEvent, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: message,
			Color:       config.InfoColor,
		}},
		Flags: discord.MessageFlagEphemeral,
	})
}

// CreateUserError replies with a validation message that did not come from an error value.
func (h *ResponseHandler) CreateUserError(event *handler.CommandEvent, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{errorEmbed(UserError, message)},
		Flags:  discord.MessageFlagEphemeral,
	})
}
