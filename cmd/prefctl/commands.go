package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lamp-prefs/internal/nvm"
	"lamp-prefs/internal/prefs"
	"lamp-prefs/internal/store"
)

type app struct {
	configPath string
	cfg        *Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "prefctl",
		Short:         "Inspect and edit the lamp's saved lighting preferences",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(a.configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if err := cfg.validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			a.cfg = cfg
			a.logger = newLogger(cfg, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "prefctl.yaml", "path to configuration file")

	root.AddCommand(
		a.showCmd(),
		a.setCmd(),
		a.importCmd(),
		a.slotsCmd(),
		a.eraseCmd(),
	)
	return root
}

// withStore opens the configured medium, runs fn and closes the medium.
func (a *app) withStore(fn func(st *store.Store) error) error {
	st, dev, err := openStore(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer dev.Close()
	return fn(st)
}

func (a *app) showCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the persisted preferences (defaults if none were saved)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(st *store.Store) error {
				p, loadErr := st.Load()
				if err := writePref(cmd.OutOrStdout(), p, output); err != nil {
					return err
				}
				if loadErr != nil {
					return fmt.Errorf("medium unreadable, defaults shown: %w", loadErr)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or yaml")
	return cmd
}

func (a *app) setCmd() *cobra.Command {
	var (
		brightness  uint8
		mode        string
		rainbowTime uint8
		hue         uint8
		saturation  uint8
		presets     []string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change fields of the persisted preferences and save them",
		Example: `  prefctl set --brightness 200 --mode rainbow
  prefctl set --preset 0=#ff0000 --preset 8=#ffa040`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(st *store.Store) error {
				p, err := st.Load()
				if err != nil {
					return err
				}
				loaded := p
				flags := cmd.Flags()
				if flags.Changed("brightness") {
					p.Brightness = brightness
				}
				if flags.Changed("mode") {
					m, err := prefs.ParseColorMode(mode)
					if err != nil {
						return err
					}
					p.ColorMode = m
				}
				if flags.Changed("rainbow-time") {
					p.RainbowTime = rainbowTime
				}
				if flags.Changed("hue") {
					p.Hue = hue
				}
				if flags.Changed("saturation") {
					p.Saturation = saturation
				}
				for _, arg := range presets {
					idx, c, err := parsePresetFlag(arg)
					if err != nil {
						return err
					}
					p.LEDPreset[idx] = c
				}
				// Saving an identical record only costs a write cycle.
				if loaded.Saved && p.Equal(loaded) {
					fmt.Fprintln(cmd.OutOrStdout(), "no changes")
					return nil
				}
				return a.save(cmd.OutOrStdout(), st, p)
			})
		},
	}
	f := cmd.Flags()
	f.Uint8Var(&brightness, "brightness", 0, "overall LED intensity (0-255)")
	f.StringVar(&mode, "mode", "", "colour mode: solid, preset, rainbow, huesat")
	f.Uint8Var(&rainbowTime, "rainbow-time", 0, "rainbow cycle period (0-255)")
	f.Uint8Var(&hue, "hue", 0, "hue angle on the 0-255 wheel")
	f.Uint8Var(&saturation, "saturation", 0, "saturation (0-255)")
	f.StringArrayVar(&presets, "preset", nil, "preset slot as N=#rrggbb (repeatable)")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Save preferences from a YAML file (as printed by show -o yaml)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			p, err := prefs.UnmarshalYAMLDoc(data)
			if err != nil {
				return err
			}
			return a.withStore(func(st *store.Store) error {
				return a.save(cmd.OutOrStdout(), st, p)
			})
		},
	}
}

func (a *app) slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "Show the state of both preference slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(st *store.Store) error {
				infos, err := st.Inspect()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, info := range infos {
					line := fmt.Sprintf("slot %d @0x%04X  %-9s", info.Index, info.Address, info.State)
					if info.State == store.SlotCommitted {
						line += fmt.Sprintf("  seq=%d", info.Sequence)
					}
					if info.Active {
						line += "  active"
					}
					if info.Reason != nil {
						line += "  (" + info.Reason.Error() + ")"
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

func (a *app) eraseCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Factory reset: erase both preference slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to erase without --yes")
			}
			return a.withStore(func(st *store.Store) error {
				if err := st.Erase(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "preferences erased")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the erase")
	return cmd
}

func (a *app) save(out io.Writer, st *store.Store, p prefs.UserPreference) error {
	res, err := st.Save(p)
	switch {
	case errors.Is(err, store.ErrSaveSkipped):
		fmt.Fprintln(out, "save skipped: too soon after the previous save")
		return err
	case errors.Is(err, nvm.ErrFault):
		return fmt.Errorf("storage fault: %w", err)
	case err != nil:
		return err
	}
	fmt.Fprintf(out, "saved to slot %d (seq %d)\n", res.Slot, res.Sequence)
	return nil
}

func parsePresetFlag(arg string) (int, prefs.RGB, error) {
	idxStr, colour, ok := strings.Cut(arg, "=")
	if !ok {
		return 0, prefs.RGB{}, fmt.Errorf("preset %q: want N=#rrggbb", arg)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(idxStr))
	if err != nil || idx < 0 || idx >= prefs.PresetCount {
		return 0, prefs.RGB{}, fmt.Errorf("preset %q: slot must be 0-%d", arg, prefs.PresetCount-1)
	}
	c, err := prefs.ParseRGB(colour)
	if err != nil {
		return 0, prefs.RGB{}, fmt.Errorf("preset %q: %w", arg, err)
	}
	return idx, c, nil
}

func writePref(w io.Writer, p prefs.UserPreference, format string) error {
	switch format {
	case "yaml":
		data, err := prefs.MarshalYAMLDoc(p)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "text", "":
		saved := "no (factory defaults)"
		if p.Saved {
			saved = "yes"
		}
		fmt.Fprintf(w, "saved:         %s\n", saved)
		fmt.Fprintf(w, "brightness:    %d\n", p.Brightness)
		fmt.Fprintf(w, "color mode:    %s\n", p.ColorMode)
		fmt.Fprintf(w, "rainbow time:  %d\n", p.RainbowTime)
		fmt.Fprintf(w, "hue:           %d\n", p.Hue)
		fmt.Fprintf(w, "saturation:    %d\n", p.Saturation)
		fmt.Fprintln(w, "presets:")
		for i, c := range p.LEDPreset {
			fmt.Fprintf(w, "  %d  %s\n", i, c.Hex())
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q (supported: text, yaml)", format)
	}
}
