package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sivia/sivia/internal/consult"
	"github.com/sivia/sivia/internal/platform/auth"
	"github.com/sivia/sivia/pkg/clinical"
)

// clientFlags adds --server and --token, also read from SIVIA_SERVER_URL and
// SIVIA_TOKEN.
func clientFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().String("server", "http://localhost:8000", "SIVIA server URL")
	cmd.Flags().String("token", "", "Bearer token")
	cmd.Flags().Duration("timeout", 180*time.Second, "Request timeout")

	v.SetEnvPrefix("SIVIA")
	_ = v.BindEnv("server", "SIVIA_SERVER_URL")
	_ = v.BindEnv("token", "SIVIA_TOKEN")
	_ = v.BindPFlag("server", cmd.Flags().Lookup("server"))
	_ = v.BindPFlag("token", cmd.Flags().Lookup("token"))
	_ = v.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
}

func newClient(v *viper.Viper) *consult.Client {
	return consult.NewClient(consult.Config{
		BaseURL: v.GetString("server"),
		Token:   v.GetString("token"),
		Timeout: v.GetDuration("timeout"),
	})
}

func consultCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "consult [anamnesis-file]",
		Short: "Run a consultation against a SIVIA server",
		Long: "Reads the anamnesis from a file (or stdin), answers the follow-up " +
			"questions interactively and prints the clinical suggestion.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			stdin := bufio.NewReader(cmd.InOrStdin())

			narrative, err := readNarrative(path, stdin)
			if err != nil {
				return err
			}
			pc := clinical.PatientCase{Anamnese: narrative}
			pc.Idade, _ = cmd.Flags().GetString("idade")
			pc.Sexo, _ = cmd.Flags().GetString("sexo")
			pc.Alergias, _ = cmd.Flags().GetStringSlice("alergias")
			pc.Medicamentos, _ = cmd.Flags().GetStringSlice("medicamentos")
			pc.Condicoes, _ = cmd.Flags().GetStringSlice("condicoes")

			ctrl := consult.NewController(newClient(v))
			mode, _ := cmd.Flags().GetString("mode")
			ctrl.SetMode(mode)

			if doc, _ := cmd.Flags().GetString("document"); doc != "" {
				if pc, err = prefill(cmd.Context(), ctrl, doc, pc); err != nil {
					return err
				}
			}

			skip, _ := cmd.Flags().GetBool("skip")
			return runConsultation(cmd.Context(), ctrl, pc, stdin, cmd.OutOrStdout(), skip)
		},
	}
	clientFlags(cmd, v)
	cmd.Flags().String("mode", clinical.ModeNormal, "normal, emergency or occupational")
	cmd.Flags().String("idade", "", "Patient age")
	cmd.Flags().String("sexo", "", "Patient sex")
	cmd.Flags().StringSlice("alergias", nil, "Allergies")
	cmd.Flags().StringSlice("medicamentos", nil, "Medications in use")
	cmd.Flags().StringSlice("condicoes", nil, "Chronic conditions")
	cmd.Flags().String("document", "", "Medical record (PDF or image) to pre-fill the case")
	cmd.Flags().Bool("skip", false, "Skip follow-up questions")
	return cmd
}

func extractCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract structured data from a medical record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			out, err := newClient(v).ExtractDocument(cmd.Context(), doc)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	clientFlags(cmd, v)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an HS256 access token for AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.AutomaticEnv()
			secret := v.GetString("AUTH_JWT_SECRET")
			if secret == "" {
				return errors.New("AUTH_JWT_SECRET is not set")
			}
			user, _ := cmd.Flags().GetString("user")
			email, _ := cmd.Flags().GetString("email")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			token, err := auth.IssueToken([]byte(secret), user, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user", auth.DevUserID, "Subject (practitioner id)")
	cmd.Flags().String("email", "", "Email claim")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	return cmd
}

// readNarrative reads the anamnesis from path, or from stdin up to EOF when
// path is empty or "-".
func readNarrative(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read anamnesis: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", consult.ErrPatientRequired
	}
	return text, nil
}

func readDocument(path string) (consult.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return consult.Document{}, err
	}
	name := filepath.Base(path)
	if err := consult.ValidateUpload(name, "", info.Size()); err != nil {
		return consult.Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return consult.Document{}, err
	}
	return consult.Document{Name: name, Data: data}, nil
}

// prefill merges an extracted document into the case typed on the command
// line. The typed narrative comes first.
func prefill(ctx context.Context, ctrl *consult.Controller, path string, pc clinical.PatientCase) (clinical.PatientCase, error) {
	doc, err := readDocument(path)
	if err != nil {
		return pc, err
	}
	filled, _, err := ctrl.Prefill(ctx, doc, clinical.Reception{Idade: pc.Idade, Sexo: pc.Sexo})
	if err != nil {
		return pc, err
	}
	if filled.Anamnese != "" {
		pc.Anamnese = pc.Anamnese + "\n\n" + filled.Anamnese
	}
	pc.Idade, pc.Sexo = filled.Idade, filled.Sexo
	if len(pc.Alergias) == 0 {
		pc.Alergias = filled.Alergias
	}
	if len(pc.Medicamentos) == 0 {
		pc.Medicamentos = filled.Medicamentos
	}
	if len(pc.Condicoes) == 0 {
		pc.Condicoes = filled.Condicoes
	}
	return pc, nil
}

// runConsultation drives the controller to Done, prompting on in for the
// follow-up questions, and renders the suggestion to out.
func runConsultation(ctx context.Context, ctrl *consult.Controller, pc clinical.PatientCase, in *bufio.Reader, out io.Writer, skip bool) error {
	if err := ctrl.Start(ctx, pc); err != nil {
		return err
	}

	for ctrl.State() == consult.Clarifying {
		if skip {
			if err := ctrl.Skip(ctx); err != nil {
				return err
			}
			break
		}
		answers, eof, err := askAnswers(in, out, ctrl.Questions())
		if err != nil {
			return err
		}
		err = ctrl.ContinueWithAnswers(ctx, answers)
		switch {
		case errors.Is(err, consult.ErrNoAnswers) && eof:
			if err := ctrl.Skip(ctx); err != nil {
				return err
			}
		case errors.Is(err, consult.ErrNoAnswers):
			fmt.Fprintln(out, err.Error())
		case err != nil:
			return err
		}
	}

	result := ctrl.Result()
	if result == nil {
		return errors.New("consultation finished without a result")
	}
	return consult.Render(out, result)
}

// askAnswers prints each question and reads one line per answer. eof is
// true when input ran out.
func askAnswers(in *bufio.Reader, out io.Writer, questions []clinical.ClarificationAnswer) ([]string, bool, error) {
	fmt.Fprintln(out, "Informações adicionais necessárias:")
	answers := make([]string, len(questions))
	for i, q := range questions {
		fmt.Fprintf(out, "%d. %s\n> ", i+1, q.Question)
		line, err := in.ReadString('\n')
		answers[i] = strings.TrimSpace(line)
		if errors.Is(err, io.EOF) {
			return answers, true, nil
		}
		if err != nil {
			return nil, false, err
		}
	}
	return answers, false, nil
}
