package cmd

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/ssargent/tickdb/pkg/api"
	"github.com/ssargent/tickdb/pkg/codec"
)

// tailCmd represents the tail command
var tailCmd = &cobra.Command{
	Use:   "tail <market> <code>",
	Short: "Follow the ticks ingested by a running server",
	Long: `Connect to the live tick stream of a running TickDB server and print
every tick ingested for one instrument until interrupted.

Examples:
  tickdb tail S 600000
  tickdb tail S 600000 --addr http://10.0.0.5:8080 --api-key mysecretkey
  tickdb tail S 600000 --count 100 -o json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		market, code, err := parseSeriesArgs(args)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		addr, _ := flags.GetString("addr")
		if addr == "" {
			addr = net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port))
		}
		apiKey, _ := flags.GetString("api-key")
		if apiKey == "" {
			apiKey = cfg.Security.APIKey
		}
		count, _ := flags.GetInt("count")
		format, _ := flags.GetString("output")

		u, err := streamURL(addr, market, code)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		header := http.Header{}
		header.Set("X-API-Key", apiKey)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, header)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", u, err)
		}
		defer conn.Close()

		// Unblocks ReadJSON on interrupt.
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()

		received := 0
		for {
			var msg api.StreamMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return fmt.Errorf("stream failed: %w", err)
			}

			switch msg.Type {
			case api.StreamSubscribed:
				logger.Info("stream subscribed", "id", msg.SubscriptionID, "url", u)
			case api.StreamTick:
				if msg.Tick == nil {
					continue
				}
				if err := outputStreamTick(cmd.OutOrStdout(), format, *msg.Tick); err != nil {
					return err
				}
				if msg.Dropped > 0 {
					logger.Warn("stream is behind", "dropped", msg.Dropped)
				}
				received++
				if count > 0 && received >= count {
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return nil
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)
	tailCmd.Flags().String("addr", "", "Server address (default bind:port from the config)")
	tailCmd.Flags().String("api-key", "", "API key (default from the config)")
	tailCmd.Flags().Int("count", 0, "Exit after this many ticks, 0 to follow forever")
	tailCmd.Flags().StringP("output", "o", "table", "Output format (table or json)")
}

// streamURL builds the websocket URL of an instrument's live stream.
func streamURL(addr string, market byte, code codec.Code) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	// Path keeps the decoded form; RawPath keeps a "/" inside the code escaped.
	m := string([]byte{market})
	c := code.String()
	rawBase := strings.TrimRight(u.EscapedPath(), "/")
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/ticks/" + m + "/" + c + "/stream"
	u.RawPath = rawBase + "/api/v1/ticks/" + url.PathEscape(m) + "/" + url.PathEscape(c) + "/stream"
	return u.String(), nil
}
