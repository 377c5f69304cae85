package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/hypebeast/go-osc/osc"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vrcbabel/bot"
	"vrcbabel/chatbox"
	"vrcbabel/cost"
	"vrcbabel/llm"
	"vrcbabel/mic"
	"vrcbabel/rate"
	"vrcbabel/seg"
	"vrcbabel/stt"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(costsCmd)

	rootCmd.PersistentFlags().String("openai-api-key", "", "OpenAI API key")
	rootCmd.PersistentFlags().
		String("target-language", "", "Language to translate speech into")
	rootCmd.PersistentFlags().
		String("openai-model", "", "Chat model used for translation")

	viper.BindPFlag(
		"openai_api_key",
		rootCmd.PersistentFlags().Lookup("openai-api-key"),
	)
	viper.BindPFlag(
		"target_language",
		rootCmd.PersistentFlags().Lookup("target-language"),
	)
	viper.BindPFlag(
		"openai_model",
		rootCmd.PersistentFlags().Lookup("openai-model"),
	)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("osc_address", "127.0.0.1")
	viper.SetDefault("osc_input_port", 9001)
	viper.SetDefault("osc_output_port", 9000)
	viper.SetDefault("max_message_chunks", 3)
	viper.SetDefault("chunk_budget", 144)
	viper.SetDefault("display_time_ms", 1000)
	viper.SetDefault("openai_model", "gpt-4o-mini")
	viper.SetDefault("target_language", "English")
	viper.SetDefault("include_original_message", false)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("channels", 1)
	viper.SetDefault("noise_gate_threshold", 0.1)
	viper.SetDefault("noise_gate_hold_time", 0.5)
	viper.SetDefault("silence_threshold", 30)
	viper.SetDefault("min_transcription_duration", 1.0)
	viper.SetDefault("requests_per_minute", 20)
	viper.SetDefault("cost_file", "total_cost.txt")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("No config file loaded: %s\n", err)
	}

	logger = log.New(os.Stderr)
}

var rootCmd = &cobra.Command{
	Use:   "vrcbabel",
	Short: "vrcbabel relays your voice to the VRChat chatbox, translated",
	Long:  `vrcbabel listens to the microphone, transcribes each utterance with Whisper, translates it, and sends it to the VRChat chatbox over OSC.`,
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Start listening and translating",
	Run:   runListen,
}

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Show the model price table and the running total",
	Run:   runCosts,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runListen(cmd *cobra.Command, args []string) {
	micLogger, mindLogger, chatLogger, costLogger := createLoggers()

	apiKey := viper.GetString("openai_api_key")
	if apiKey == "" {
		mindLogger.Fatal("missing OPENAI_API_KEY or --openai-api-key=")
	}

	model := viper.GetString("openai_model")
	targetLanguage := viper.GetString("target_language")

	if budget := viper.GetInt("chunk_budget"); budget <= 0 {
		chatLogger.Fatal("chunk_budget must be positive", "chunk_budget", budget)
	}
	if max := viper.GetInt("max_message_chunks"); max <= 0 {
		chatLogger.Fatal("max_message_chunks must be positive", "max_message_chunks", max)
	}

	oscClient := osc.NewClient(
		viper.GetString("osc_address"),
		viper.GetInt("osc_output_port"),
	)
	if err := oscClient.SetLocalAddr(
		viper.GetString("osc_address"),
		viper.GetInt("osc_input_port"),
	); err != nil {
		chatLogger.Fatal("bind OSC socket", "error", err.Error())
	}

	box := chatbox.New(
		oscClient,
		viper.GetInt("chunk_budget"),
		viper.GetInt("max_message_chunks"),
		time.Duration(viper.GetInt("display_time_ms"))*time.Millisecond,
		chatLogger,
	)

	ledger := cost.OpenLedger(viper.GetString("cost_file"), model, costLogger)
	costLogger.Info("loaded running total", "total", fmt.Sprintf("$%.4f", ledger.Total()))

	limiter := rate.NewLimiter(viper.GetInt("requests_per_minute"))
	whisper := stt.NewWhisperClient(apiKey, mindLogger)
	translator := llm.NewOpenAITranslator(apiKey, model, targetLanguage)

	events := make(chan seg.Event, seg.EventBufferSize)
	capture, err := mic.Start(mic.Config{
		SampleRate:    viper.GetInt("sample_rate"),
		Channels:      viper.GetInt("channels"),
		Threshold:     float32(viper.GetFloat64("noise_gate_threshold")),
		Hold:          time.Duration(viper.GetFloat64("noise_gate_hold_time") * float64(time.Second)),
		SilenceFrames: viper.GetInt("silence_threshold"),
	}, events, micLogger)
	if err != nil {
		micLogger.Fatal("start audio capture", "error", err.Error())
	}

	mindLogger.Info("translating", "target_language", targetLanguage, "model", model)
	mindLogger.Info("rate limit", "requests_per_minute", viper.GetInt("requests_per_minute"))

	b := bot.New(
		bot.Config{
			MinDuration: time.Duration(
				viper.GetFloat64("min_transcription_duration") * float64(time.Second),
			),
			IncludeOriginal: viper.GetBool("include_original_message"),
		},
		limiter,
		whisper,
		translator,
		box,
		ledger,
		mindLogger,
	)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT, syscall.SIGTERM, os.Interrupt,
	)
	go func() {
		<-ctx.Done()
		stop()
		capture.Close()
	}()

	// Drains until capture closes the channel on shutdown.
	b.Run(context.Background(), events)

	if dropped := capture.Dropped(); dropped > 0 {
		micLogger.Warn("events dropped under overload", "count", dropped)
	}
	if fails := capture.EncodeFailures(); fails > 0 {
		micLogger.Warn("segments discarded by encoding failures", "count", fails)
	}
}

func runCosts(cmd *cobra.Command, args []string) {
	_, _, _, costLogger := createLoggers()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Model", "Input $/1M tok", "Output $/1M tok"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)

	models := cost.Models()
	sort.Strings(models)
	for _, model := range models {
		prices := cost.Lookup(model)
		table.Append([]string{
			model,
			fmt.Sprintf("%.3f", prices.InputPerMillion),
			fmt.Sprintf("%.3f", prices.OutputPerMillion),
		})
	}
	table.Render()

	total, err := cost.LoadTotal(viper.GetString("cost_file"))
	if err != nil {
		costLogger.Info("no running total recorded yet")
		return
	}
	fmt.Printf("\nTotal cost so far: $%.4f\n", total)
}

func createLoggers() (micLogger, mindLogger, chatLogger, costLogger *log.Logger) {
	logger.SetLevel(log.DebugLevel)

	styles := log.DefaultStyles()
	styles.Prefix = styles.Prefix.Bold(false).
		Transform(func(s string) string {
			return strings.TrimSuffix(s, ":")
		})
	styles.Levels[log.InfoLevel] = styles.Levels[log.InfoLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Levels[log.ErrorLevel] = styles.Levels[log.ErrorLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Key = styles.Key.MarginLeft(1).
		Bold(false).
		Foreground(lipgloss.Color("#ff8800"))

	logger.SetStyles(styles)

	micLogger = logger.With().WithPrefix("mic")
	mindLogger = logger.With().WithPrefix("mind")
	chatLogger = logger.With().WithPrefix("chat")
	costLogger = logger.With().WithPrefix("cost")

	return
}
