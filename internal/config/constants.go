package config

import "fmt"

const (
	DEFAULT_PROMPT_TOKEN_LIMIT = 8_000
	DEFAULT_TYPING_DELAY       = 0
	DEFAULT_ENV_FILE           = ".env"
	ENV_PREFIX                 = "PROMPTFORGE"
	ENV_PROMPT_TOKEN_LIMIT     = "PROMPT_TOKEN_LIMIT"
	ENV_MODEL                  = "MODEL"
	ENV_PROVIDER               = "PROVIDER"
	ENV_TEMPLATE               = "TEMPLATE"
	ENV_API_KEY                = "API_KEY"
	ENV_ENDPOINT               = "ENDPOINT"
	ENV_NO_STREAM              = "NO_STREAM"
	ENV_HISTORY                = "HISTORY"
	ENV_TYPING_DELAY           = "TYPING_DELAY"
	ENV_LOG_FILE               = "LOG_FILE"
	ENV_DEBUG                  = "DEBUG"
	CONFIG_TEMPLATES           = "templates"
)

func GetEnvWithPrefix(env string) string {
	return fmt.Sprintf("%s_%s", ENV_PREFIX, env)
}
