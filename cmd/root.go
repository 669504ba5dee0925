// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/n7cw/cwkeyer/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "cwkeyer",
	Short: "CW (Morse code) transmit and receive engine",
	Long:  `A CW keyer: sends text as synthesized Morse code, or decodes mark/space timing into text.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "execution error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio device index (-1 for default)")
	rootCmd.PersistentFlags().Float64P("frequency", "f", 800, "CW tone frequency in Hz")
	rootCmd.PersistentFlags().Float64P("wpm", "w", 12, "sending/receiving speed in WPM")
	rootCmd.PersistentFlags().IntP("volume", "v", 70, "volume percent (0-100)")
	rootCmd.PersistentFlags().IntP("gap", "g", 0, "Farnsworth extra spacing (0-60)")
	rootCmd.PersistentFlags().Float64("weighting", 50, "dot/dash weighting (20-80, 50 = unweighted)")
	rootCmd.PersistentFlags().StringP("sink", "s", "null", "audio sink: null|console|malgo")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	cobra.CheckErr(viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device")))
	cobra.CheckErr(viper.BindPFlag("tone_frequency_hz", rootCmd.PersistentFlags().Lookup("frequency")))
	cobra.CheckErr(viper.BindPFlag("speed_wpm", rootCmd.PersistentFlags().Lookup("wpm")))
	cobra.CheckErr(viper.BindPFlag("volume_percent", rootCmd.PersistentFlags().Lookup("volume")))
	cobra.CheckErr(viper.BindPFlag("gap", rootCmd.PersistentFlags().Lookup("gap")))
	cobra.CheckErr(viper.BindPFlag("weighting", rootCmd.PersistentFlags().Lookup("weighting")))
	cobra.CheckErr(viper.BindPFlag("sink", rootCmd.PersistentFlags().Lookup("sink")))
	cobra.CheckErr(viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")))

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(keyCmd)
}

func initConfig() {
	if err := config.Init(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}
