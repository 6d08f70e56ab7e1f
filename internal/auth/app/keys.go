package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/affworld/internal/auth/tokens"
	"github.com/aussiebroadwan/affworld/pkg/cryptox"
	"github.com/aussiebroadwan/affworld/pkg/jwtx"
)

// InitTokenCodec builds the token codec from the configured format and keys.
//
// Formats:
//   - "jwt" with HS256: separate access and refresh secrets.
//   - "jwt" with EdDSA: one Ed25519 key signs both kinds.
//   - "paseto": v4.public, signed with an Ed25519 key.
//
// Without AUTH_SIGNING_KEY_FILE the Ed25519 key is generated at startup and
// lives only in memory, so every issued token dies with the process.
func InitTokenCodec(cfg Config, logger *slog.Logger) (tokens.Codec, error) {
	lifetimes := tokens.Lifetimes{
		Access:  cfg.AccessTokenTTL,
		Refresh: cfg.RefreshTokenTTL,
	}

	if cfg.TokenFormat == "jwt" && cfg.Algorithm == "HS256" {
		access, err := jwtx.NewSignerHS256([]byte(cfg.AccessTokenSecret))
		if err != nil {
			return nil, fmt.Errorf("access token secret: %w", err)
		}
		refresh, err := jwtx.NewSignerHS256([]byte(cfg.RefreshTokenSecret))
		if err != nil {
			return nil, fmt.Errorf("refresh token secret: %w", err)
		}
		logger.Info("token codec ready", "format", "jwt", "algorithm", "HS256")
		return tokens.NewJWTCodec(access, refresh, cfg.Issuer, lifetimes), nil
	}

	pemKey, err := loadSigningKey(cfg.SigningKeyFile, logger)
	if err != nil {
		return nil, err
	}

	if cfg.TokenFormat == "paseto" {
		key, err := cryptox.ParseEd25519PrivateKey(pemKey)
		if err != nil {
			return nil, err
		}
		codec, err := tokens.NewPASETOCodec(key, cfg.Issuer, lifetimes)
		if err != nil {
			return nil, err
		}
		logger.Info("token codec ready", "format", "paseto", "version", "v4.public")
		return codec, nil
	}

	signer, err := jwtx.NewSignerEdDSA(pemKey)
	if err != nil {
		return nil, err
	}
	logger.Info("token codec ready", "format", "jwt", "algorithm", signer.Alg())
	return tokens.NewJWTCodec(signer, signer, cfg.Issuer, lifetimes), nil
}

func loadSigningKey(path string, logger *slog.Logger) ([]byte, error) {
	if path != "" {
		pemKey, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}
		return pemKey, nil
	}

	pemKey, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	logger.Warn("no AUTH_SIGNING_KEY_FILE set, generated an ephemeral signing key; all sessions end on restart")
	return pemKey, nil
}
