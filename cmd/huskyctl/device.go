package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/huskylens/internal/huskylens"
)

// ackCmd builds a subcommand around a single acknowledged request.
func ackCmd(a *app, use, short string, args cobra.PositionalArgs, call func(c *huskylens.Client, args []string) (bool, error)) *cobra.Command {
	name := strings.Fields(use)[0]
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			return a.withClient(func(c *huskylens.Client) error {
				ok, err := call(c, argv)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				if !ok {
					return fmt.Errorf("%s: %w", name, errNotAcknowledged)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}

func knockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "knock",
		Short: "Check that the device answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(func(c *huskylens.Client) error {
				ok, err := c.Knock()
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no answer on %s within %s", a.cfg.Serial.Port, shortDuration(a.cfg.Serial.ReadTimeout))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "connected")
				return nil
			})
		},
	}
}

func algorithmCmd(a *app) *cobra.Command {
	names := make([]string, 0, len(huskylens.Algorithms()))
	for _, alg := range huskylens.Algorithms() {
		names = append(names, alg.String())
	}
	cmd := ackCmd(a, "algorithm <name>", "Switch the recognition algorithm", cobra.ExactArgs(1),
		func(c *huskylens.Client, args []string) (bool, error) {
			alg, err := huskylens.ParseAlgorithm(args[0])
			if err != nil {
				return false, err
			}
			return c.SetAlgorithm(alg)
		})
	cmd.Long = "Switch the recognition algorithm. Known algorithms:\n  " + strings.Join(names, "\n  ")
	cmd.ValidArgs = names
	return cmd
}

func learnCmd(a *app) *cobra.Command {
	return ackCmd(a, "learn <id>", "Learn the object in view under id", cobra.ExactArgs(1),
		func(c *huskylens.Client, args []string) (bool, error) {
			id, err := parseUint16("id", args[0])
			if err != nil {
				return false, err
			}
			return c.Learn(id)
		})
}

func forgetCmd(a *app) *cobra.Command {
	return ackCmd(a, "forget", "Forget everything learned by the current algorithm", cobra.NoArgs,
		func(c *huskylens.Client, _ []string) (bool, error) { return c.Forget() })
}

func photoCmd(a *app) *cobra.Command {
	return ackCmd(a, "photo", "Save a photo to the device SD card", cobra.NoArgs,
		func(c *huskylens.Client, _ []string) (bool, error) { return c.Photo() })
}

func screenshotCmd(a *app) *cobra.Command {
	return ackCmd(a, "screenshot", "Save a screenshot to the device SD card", cobra.NoArgs,
		func(c *huskylens.Client, _ []string) (bool, error) { return c.Screenshot() })
}

func nameCmd(a *app) *cobra.Command {
	return ackCmd(a, "name <id> <name>", "Set the display name of a learned id", cobra.MinimumNArgs(2),
		func(c *huskylens.Client, args []string) (bool, error) {
			id, err := parseUint16("id", args[0])
			if err != nil {
				return false, err
			}
			return c.SetName(id, strings.Join(args[1:], " "))
		})
}

func textCmd(a *app) *cobra.Command {
	return ackCmd(a, "text <x> <y> <text>", "Draw text on the device screen", cobra.MinimumNArgs(3),
		func(c *huskylens.Client, args []string) (bool, error) {
			x, err := parseUint16("x", args[0])
			if err != nil {
				return false, err
			}
			y, err := parseUint16("y", args[1])
			if err != nil {
				return false, err
			}
			return c.SetText(x, y, strings.Join(args[2:], " "))
		})
}

func clearTextCmd(a *app) *cobra.Command {
	return ackCmd(a, "clear-text", "Remove all text drawn on the screen", cobra.NoArgs,
		func(c *huskylens.Client, _ []string) (bool, error) { return c.ClearText() })
}

func saveModelCmd(a *app) *cobra.Command {
	return ackCmd(a, "save-model <slot>", "Save the current model to an SD card slot", cobra.ExactArgs(1),
		func(c *huskylens.Client, args []string) (bool, error) {
			slot, err := parseUint16("slot", args[0])
			if err != nil {
				return false, err
			}
			return c.SaveModel(slot)
		})
}

func loadModelCmd(a *app) *cobra.Command {
	return ackCmd(a, "load-model <slot>", "Load a model from an SD card slot", cobra.ExactArgs(1),
		func(c *huskylens.Client, args []string) (bool, error) {
			slot, err := parseUint16("slot", args[0])
			if err != nil {
				return false, err
			}
			return c.LoadModel(slot)
		})
}

func isProCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "is-pro",
		Short: "Report whether the device is the Pro model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(func(c *huskylens.Client) error {
				pro, err := c.IsPro()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pro: %t\n", pro)
				return nil
			})
		},
	}
}
