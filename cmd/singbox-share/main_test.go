package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const (
	alicePrivate = "dwdtCnMYpX08FsFyUbJmRd9ML4frwJkqsXf7pR25LCo"
	alicePublic  = "hSDwCYkwp1R0i33ctD73Wg2_Og0mOBr066SpjqqbTmo"
	aliceUUID    = "0b7d7a4e-6f1c-4c59-9d53-5d3c1e0f8a21"
)

const singboxConfig = `{
  // managed by singbox-users
  "inbounds": [
    {"type": "socks", "tag": "socks-in", "listen_port": 1080},
    {
      "type": "vless",
      "tag": "vless-in",
      "listen": "::",
      "listen_port": "8443",
      "users": [
        {"name": "alice", "uuid": "` + aliceUUID + `", "flow": "xtls-rprx-vision"},
      ],
      "tls": {
        "enabled": true,
        "server_name": "www.googletagmanager.com",
        "reality": {
          "enabled": true,
          "handshake": {"server": "www.googletagmanager.com", "server_port": 443},
          "private_key": "` + alicePrivate + `",
          "short_id": ["0123abcd", "ffee"],
        },
      },
    },
  ],
}`

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	dir      string
	settings string
	metrics  string
}

func newFixture(t *testing.T, extra string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:      dir,
		settings: filepath.Join(dir, "settings.yaml"),
		metrics:  filepath.Join(dir, "share.prom"),
	}
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(singboxConfig), 0o600))
	f.writeSettings(t, "singbox_config: "+cfgPath+"\n"+
		"server_ip: 203.0.113.5\n"+
		"log_level: error\n"+
		"metrics_textfile: "+f.metrics+"\n"+extra)
	return f
}

func (f fixture) writeSettings(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.settings, []byte(body), 0o600))
}

func runCLI(t *testing.T, stdin string, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), errOut.String(), code
}

func TestLinkDecodeRoundTrip(t *testing.T) {
	f := newFixture(t, "")

	out, stderr, code := runCLI(t, "", "link", "--settings", f.settings, "--client", "alice")
	require.Equal(t, 0, code, stderr)
	link := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(link, "vpn://"))

	out, stderr, code = runCLI(t, "", "decode", link)
	require.Equal(t, 0, code, stderr)

	var outer map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &outer))
	assert.Equal(t, "203.0.113.5", outer["hostName"])

	out, stderr, code = runCLI(t, "", "decode", "--format", "inner", link)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, `"publicKey": "`+alicePublic+`"`)
	assert.Contains(t, out, `"shortId": "0123abcd"`)
	assert.Contains(t, out, `"port": 8443`)
	assert.Contains(t, out, `"id": "`+aliceUUID+`"`)

	metrics, err := os.ReadFile(f.metrics)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `singbox_share_builds_total{result="ok"} 1`)
}

func TestDecodeYAML(t *testing.T) {
	f := newFixture(t, "share_description: Home\n")
	out, _, code := runCLI(t, "", "link", "-s", f.settings, "-c", aliceUUID)
	require.Equal(t, 0, code)

	out, stderr, code := runCLI(t, "", "decode", "-f", "yaml", strings.TrimSpace(out))
	require.Equal(t, 0, code, stderr)

	var doc struct {
		Profile struct {
			Description string `yaml:"description"`
		} `yaml:"profile"`
		Client struct {
			Outbounds []struct {
				StreamSettings struct {
					RealitySettings struct {
						PublicKey string `yaml:"publicKey"`
					} `yaml:"realitySettings"`
				} `yaml:"streamSettings"`
			} `yaml:"outbounds"`
		} `yaml:"client"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Home", doc.Profile.Description)
	require.Len(t, doc.Client.Outbounds, 1)
	assert.Equal(t, alicePublic, doc.Client.Outbounds[0].StreamSettings.RealitySettings.PublicKey)
}

func TestQRDecodeFromStdin(t *testing.T) {
	f := newFixture(t, "")
	out, stderr, code := runCLI(t, "", "qr", "--settings", f.settings, "--client", "alice", "--chunk-size", "100")
	require.Equal(t, 0, code, stderr)

	tokens := strings.Fields(out)
	require.Greater(t, len(tokens), 1)
	assert.Contains(t, stderr, "[QR 1/")

	// Frames reassemble in any order.
	reversed := make([]string, len(tokens))
	for i, tok := range tokens {
		reversed[len(tokens)-1-i] = tok
	}
	fromQR, stderr, code := runCLI(t, strings.Join(reversed, "\n")+"\n", "decode")
	require.Equal(t, 0, code, stderr)

	link, _, code := runCLI(t, "", "link", "--settings", f.settings, "--client", "alice")
	require.Equal(t, 0, code)
	fromLink, _, code := runCLI(t, "", "decode", strings.TrimSpace(link))
	require.Equal(t, 0, code)
	assert.Equal(t, fromLink, fromQR)
}

func TestSettingsFallbackWithoutSingboxConfig(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.yaml")
	body := "singbox_config: " + filepath.Join(dir, "missing.json") + "\n" +
		"server_ip: 198.51.100.7\nserver_port: 2053\nlog_level: error\n"
	require.NoError(t, os.WriteFile(settings, []byte(body), 0o600))

	_, stderr, code := runCLI(t, "", "link", "--settings", settings, "--client", aliceUUID)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "server_pubkey and server_short_id are required")

	body += "server_pubkey: " + alicePublic + "\nserver_short_id: beef\n"
	require.NoError(t, os.WriteFile(settings, []byte(body), 0o600))
	out, stderr, code := runCLI(t, "", "link", "--settings", settings, "--client", aliceUUID)
	require.Equal(t, 0, code, stderr)

	out, _, code = runCLI(t, "", "decode", "--format", "inner", strings.TrimSpace(out))
	require.Equal(t, 0, code)
	assert.Contains(t, out, `"port": 2053`)
	assert.Contains(t, out, `"shortId": "beef"`)
}

func TestLinkErrors(t *testing.T) {
	f := newFixture(t, "")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing client", args: []string{"link", "--settings", f.settings}, want: "--client is required"},
		{name: "unknown user", args: []string{"link", "--settings", f.settings, "--client", "bob"}, want: `no user "bob"`},
		{name: "missing settings", args: []string{"link", "--settings", filepath.Join(f.dir, "nope.yaml"), "--client", "alice"}, want: "server_ip is required"},
		{name: "bad flag", args: []string{"link", "--nope"}, want: "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, stderr, code := runCLI(t, "", tt.args...)
			assert.Equal(t, 1, code)
			assert.Empty(t, out)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, stderr, code := runCLI(t, "", "decode", "vpn://!!!")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error:")

	_, stderr, code = runCLI(t, "", "decode")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "nothing to decode")

	_, stderr, code = runCLI(t, "", "decode", "--format", "xml", "vpn://AAAA")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown format "xml"`)
}

func TestPubkey(t *testing.T) {
	out, stderr, code := runCLI(t, "", "pubkey", alicePrivate)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, alicePublic+"\n", out)

	out, _, code = runCLI(t, "", "pubkey", "--generate")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	private := strings.TrimPrefix(lines[0], "PrivateKey: ")
	public := strings.TrimPrefix(lines[1], "PublicKey: ")

	out, _, code = runCLI(t, "", "pubkey", private)
	require.Equal(t, 0, code)
	assert.Equal(t, public+"\n", out)

	_, stderr, code = runCLI(t, "", "pubkey", "c2hvcnQ")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "derive public key")

	_, _, code = runCLI(t, "", "pubkey")
	assert.Equal(t, 1, code)
}

func TestVersionAndUsage(t *testing.T) {
	out, _, code := runCLI(t, "", "version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "singbox-share dev"))

	_, stderr, code := runCLI(t, "")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage:")

	_, _, code = runCLI(t, "", "--help")
	assert.Equal(t, 0, code)

	_, _, code = runCLI(t, "", "link", "--help")
	assert.Equal(t, 0, code)

	_, stderr, code = runCLI(t, "", "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)
}

func TestWatchRebuildsOnSettingsChange(t *testing.T) {
	f := newFixture(t, "")
	cfgPath := filepath.Join(f.dir, "config.json")
	settingsFor := func(ip string) string {
		return "singbox_config: " + cfgPath + "\nserver_ip: " + ip + "\nlog_level: error\n" +
			"metrics_textfile: " + f.metrics + "\n"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout, stderr syncBuffer
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"watch", "--settings", f.settings, "--client", "alice"}, strings.NewReader(""), &stdout, &stderr)
	}()

	links := func() []string { return strings.Fields(stdout.String()) }
	require.Eventually(t, func() bool { return len(links()) == 1 }, 5*time.Second, 20*time.Millisecond)

	f.writeSettings(t, settingsFor("203.0.113.77"))
	require.Eventually(t, func() bool { return len(links()) >= 2 }, 5*time.Second, 20*time.Millisecond)

	// Back-to-back edits must end on the newest settings.
	f.writeSettings(t, settingsFor("203.0.113.88"))
	f.writeSettings(t, settingsFor("203.0.113.99"))
	lastHost := func() string {
		got := links()
		out, _, code := runCLI(t, "", "decode", got[len(got)-1])
		if code != 0 {
			return ""
		}
		var outer struct {
			HostName string `json:"hostName"`
		}
		if json.Unmarshal([]byte(out), &outer) != nil {
			return ""
		}
		return outer.HostName
	}
	require.Eventually(t, func() bool { return lastHost() == "203.0.113.99" }, 5*time.Second, 20*time.Millisecond)

	// Counters accumulate across rebuilds.
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(f.metrics)
		if err != nil {
			return false
		}
		want := fmt.Sprintf(`singbox_share_builds_total{result="ok"} %d`, len(links()))
		return strings.Contains(string(data), want)
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, len(links()), 3)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code, stderr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
