package study

import (
	"fmt"
	"strconv"
	"strings"

	"studyrun/internal/canon"
)

// Question describes a single prompt asked by 'studyrun init'.
type Question struct {
	Key     string
	Prompt  string
	Default string
	// Validate checks a non-blank answer. Blank answers take Default and
	// are never passed to it.
	Validate func(answer string) error
}

// InitQuestions returns the prompts needed to create a study.
func InitQuestions() []Question {
	return []Question{
		{Key: "runner", Prompt: "Solver executable", Default: DefaultRunner},
		{Key: "prefix", Prompt: "Record name prefix", Default: DefaultPrefix, Validate: checkPrefix},
		{Key: "samples", Prompt: "Samples per configuration", Default: strconv.Itoa(DefaultSamples), Validate: checkSamples},
		{Key: "hash", Prompt: "Hash scheme (sha256 or md5)", Default: string(canon.DefaultScheme), Validate: checkScheme},
	}
}

func checkPrefix(v string) error {
	if strings.ContainsAny(v, "-/\\ \t") {
		return fmt.Errorf("prefix %q must not contain dashes, slashes or spaces", v)
	}
	return nil
}

func checkSamples(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fmt.Errorf("samples must be a positive integer, got %q", v)
	}
	return nil
}

func checkScheme(v string) error {
	_, err := canon.ParseScheme(v)
	return err
}

// SettingsFromAnswers builds Settings from prompt answers keyed by
// Question.Key. Blank answers take the question's default.
func SettingsFromAnswers(answers map[string]string) (Settings, error) {
	values := make(map[string]string)
	for _, q := range InitQuestions() {
		v := strings.TrimSpace(answers[q.Key])
		if v == "" {
			v = q.Default
		} else if q.Validate != nil {
			if err := q.Validate(v); err != nil {
				return Settings{}, err
			}
		}
		values[q.Key] = v
	}

	samples, _ := strconv.Atoi(values["samples"])
	return Settings{
		Runner:  values["runner"],
		Prefix:  values["prefix"],
		Samples: samples,
		Hash:    values["hash"],
	}, nil
}
