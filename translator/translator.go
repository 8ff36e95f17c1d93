package translator

import (
	"os"
	"path/filepath"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

var Translator *i18n.Bundle

type Config struct {
	TranslationFolder  string
	SupportedLanguages []string
}

const (
	LanguageEn = "en"
	LanguageSw = "sw"
)

var matcher = language.NewMatcher([]language.Tag{language.English, language.Swahili})

func InitTranslator(cfg Config) {
	Translator = i18n.NewBundle(language.English)
	Translator.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	lstFiles, err := os.ReadDir(cfg.TranslationFolder)
	if err != nil {
		zap.L().Error("failed to list translation folder", zap.String("folder", cfg.TranslationFolder), zap.Error(err))
		return
	}

	for _, f := range lstFiles {
		if f.IsDir() || filepath.Ext(f.Name()) != ".toml" {
			continue
		}
		if _, err := Translator.LoadMessageFile(filepath.Join(cfg.TranslationFolder, f.Name())); err != nil {
			zap.L().Warn("failed to load translation file", zap.String("file", f.Name()), zap.Error(err))
		}
	}
}

// Localize renders messageID in lang, falling back to English and finally to
// fallback when no bundle carries the message.
func Localize(lang, messageID, fallback string) string {
	if Translator == nil || messageID == "" {
		return fallback
	}
	l := i18n.NewLocalizer(Translator, lang, LanguageEn)
	msg, err := l.Localize(&i18n.LocalizeConfig{
		MessageID:      messageID,
		DefaultMessage: &i18n.Message{ID: messageID, Other: fallback},
	})
	if msg != "" {
		return msg
	}
	if err != nil {
		zap.L().Debug("translation not found", zap.String("lang", lang), zap.String("message_id", messageID), zap.Error(err))
	}
	return fallback
}

// MatchLanguage picks a supported language from an Accept-Language header.
func MatchLanguage(acceptLanguage string) string {
	if acceptLanguage == "" {
		return LanguageEn
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return LanguageEn
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return LanguageEn
	}
	if idx == 1 {
		return LanguageSw
	}
	return LanguageEn
}
