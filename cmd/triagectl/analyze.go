package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-triage-backend/internal/capture"
	"github.com/tbourn/go-triage-backend/internal/offline"
	"github.com/tbourn/go-triage-backend/internal/pipeline"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		file        string
		useCamera   bool
		deviceIndex int
		answers     []string
		language    string
		forceOff    bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a skin photo, queueing it when the server is unreachable",
		Example: `  triagectl analyze --file rash.jpg --answer itch=yes --answer duration=3d
  triagectl analyze --camera --lang de`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if (file == "") == !useCamera {
				return errors.New("exactly one of --file or --camera is required")
			}
			mcq, err := parseAnswers(answers)
			if err != nil {
				return err
			}

			var img capture.Image
			if useCamera {
				cam := capture.NewCamera(capture.NewFFmpegDevice(deviceIndex), a.log)
				defer cam.Close()
				if err := cam.Open(ctx); err != nil {
					return err
				}
				if _, err := cam.Capture(ctx); err != nil {
					return err
				}
				if img, err = cam.Confirm(); err != nil {
					return err
				}
			} else if img, err = capture.FromFile(file); err != nil {
				return err
			}

			conn := offline.NewConnectivity(false)
			if !forceOff {
				conn = a.connectivity(ctx)
			}
			out, err := pipeline.New(a.api, a.queue, conn, a.log).Submit(ctx, img, mcq, language)
			if err != nil {
				return err
			}
			return printOutcome(cmd.OutOrStdout(), out)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "photo file")
	f.BoolVar(&useCamera, "camera", false, "capture from the camera with ffmpeg")
	f.IntVar(&deviceIndex, "device", 0, "camera index")
	f.StringArrayVarP(&answers, "answer", "a", nil, "symptom answer as question=answer (repeatable)")
	f.StringVarP(&language, "lang", "l", "en", "response language (BCP 47)")
	f.BoolVar(&forceOff, "offline", false, "queue without contacting the server")
	return cmd
}

func parseAnswers(in []string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for _, kv := range in {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("answer %q: want question=answer", kv)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func printOutcome(w io.Writer, out pipeline.Outcome) error {
	if out.Queued {
		_, err := fmt.Fprintf(w, "offline: analysis queued as %s; run `triagectl replay` when back online\n", out.QueueID)
		return err
	}
	return printJSON(w, out.Result)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
