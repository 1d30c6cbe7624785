package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/cinefluent/internal/service"
	"github.com/MimeLyc/cinefluent/internal/subtitle"
	"github.com/MimeLyc/cinefluent/pkg/file"
	"github.com/MimeLyc/cinefluent/pkg/log"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var lang string
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "import DIR",
		Short: "Process every .srt and .vtt file under a directory",
		Long: "Process every subtitle file under DIR. The movie id is the file name up to " +
			"its first dot; the language comes from the file name or --language.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var after time.Time
			if since > 0 {
				after = time.Now().Add(-since)
			}
			paths, err := file.FindSubtitleFiles(args[0], after)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No subtitle files found")
				return nil
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rows := make([][]string, 0, len(paths))
			failed := 0
			for _, path := range paths {
				fileLang := lang
				if detected, ok := subtitle.LanguageFromFilename(path); ok {
					fileLang = detected
				}
				var res service.UploadResult
				err := service.SafeExecute(func() error {
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					res, err = a.svc.ProcessUpload(cmd.Context(), service.UploadRequest{
						Data:      data,
						Extension: filepath.Ext(path),
						MovieID:   file.Stem(path),
						Language:  fileLang,
						Source:    service.SourceImport,
					})
					return err
				})
				if err == nil {
					rows = append(rows, append([]string{filepath.Base(path), res.SubtitleID}, summaryRow(res.Summary)...))
					continue
				}
				failed++
				log.Warn("Skipping %s: %v", path, err)
				rows = append(rows, []string{filepath.Base(path), "failed: " + service.KindOf(err).String()})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out,
				[]string{"File", "Subtitle", "Cues", "Segments", "Duration", "Vocabulary", "Avg difficulty"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			fmt.Fprintf(out, "Imported %s of %s files\n", humanize.Comma(int64(len(paths)-failed)), humanize.Comma(int64(len(paths))))
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "language", "", "Language for files whose name does not carry one")
	cmd.Flags().DurationVar(&since, "since", 0, "Only import files modified within this duration")
	return cmd
}
