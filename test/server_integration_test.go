/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pgedge-nla/internal/auth"
)

// NLAServer manages a pgedge-nla-server process for testing
type NLAServer struct {
	cmd     *exec.Cmd
	baseURL string
	client  *http.Client
	t       *testing.T
}

var (
	buildOnce   sync.Once
	binaryPath  string
	buildOutput []byte
	buildErr    error
)

// serverBinary builds the server once per test run
func serverBinary(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "pgedge-nla-bin")
		if err != nil {
			buildErr = err
			return
		}
		binaryPath = filepath.Join(dir, "pgedge-nla-server")
		cmd := exec.Command("go", "build", "-o", binaryPath, "../cmd/pgedge-nla-server")
		buildOutput, buildErr = cmd.CombinedOutput()
	})
	if buildErr != nil {
		t.Fatalf("failed to build server: %v\nOutput: %s", buildErr, buildOutput)
	}
	return binaryPath
}

// fakeModel serves an OpenAI-compatible chat endpoint. The classifier
// rejects questions about the weather; generation returns sql.
func fakeModel(t *testing.T, sql string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var system, user string
		for _, m := range req.Messages {
			if m.Role == "system" {
				system = m.Content
			} else {
				user = m.Content
			}
		}

		reply := "```sql\n" + sql + "\n```"
		if strings.Contains(system, "classifier") {
			reply = "YES"
			if strings.Contains(strings.ToLower(user), "weather") {
				reply = "NO"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().String()
}

// StartNLAServer starts the server against the fake model
func StartNLAServer(t *testing.T, modelURL, dbURL string, extraArgs []string, useTLS bool) *NLAServer {
	t.Helper()

	addr := freeAddr(t)
	dir := t.TempDir()
	args := append([]string{
		"-addr", addr,
		"-llm-provider", "ollama",
		"-llm-model", "test-model",
		"-db-url", dbURL,
	}, extraArgs...)

	server := &NLAServer{t: t, baseURL: "http://" + addr, client: &http.Client{Timeout: 10 * time.Second}}
	if useTLS {
		certFile, keyFile := generateSelfSignedCert(t)
		args = append(args, "-tls", "-cert", certFile, "-key", keyFile)
		server.baseURL = "https://" + addr
		server.client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed test certificate
		}
	}

	cmd := exec.Command(serverBinary(t), args...)
	cmd.Env = append(os.Environ(),
		"PGEDGE_NLA_OLLAMA_URL="+modelURL,
		"PGEDGE_NLA_INDEX_PATH="+filepath.Join(dir, "schema-index.db"),
		"PGEDGE_NLA_HISTORY_ENABLED=false",
		"PGEDGE_NLA_LOG_LEVEL=debug",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	server.cmd = cmd
	t.Cleanup(func() {
		server.Close()
		if t.Failed() {
			t.Logf("[SERVER] %s", stderr.String())
		}
	})

	if err := server.waitForReady(); err != nil {
		t.Fatalf("server failed to become ready: %v", err)
	}
	return server
}

// waitForReady waits for the health endpoint to answer
func (s *NLAServer) waitForReady() error {
	for i := 0; i < 100; i++ {
		resp, err := s.client.Get(s.baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for server to be ready")
}

// Ask posts a question and decodes the response body
func (s *NLAServer) Ask(question, token string) (int, map[string]any) {
	s.t.Helper()
	body, _ := json.Marshal(map[string]string{"question": question})
	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/ask", bytes.NewReader(body))
	if err != nil {
		s.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.t.Fatalf("POST /ask: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		s.t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, decoded
}

// Close interrupts the server and waits for it to exit
func (s *NLAServer) Close() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	_ = s.cmd.Process.Signal(os.Interrupt)
	done := make(chan struct{})
	go func() {
		_ = s.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
}

// unreachableDB points at a closed port; nothing in these tests reaches
// the executor
const unreachableDB = "postgres://nobody@127.0.0.1:1/none?connect_timeout=1"

func TestServerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	model := fakeModel(t, "DELETE FROM customers")

	for _, useTLS := range []bool{false, true} {
		name := "HTTP"
		if useTLS {
			name = "HTTPS"
		}
		t.Run(name, func(t *testing.T) {
			server := StartNLAServer(t, model.URL, unreachableDB, nil, useTLS)

			t.Run("out of domain", func(t *testing.T) {
				status, body := server.Ask("What is the weather like?", "")
				if status != http.StatusOK || body["success"] != true {
					t.Fatalf("status=%d body=%v", status, body)
				}
				if !strings.HasPrefix(body["summary"].(string), "I can only answer questions about the database") {
					t.Errorf("summary = %v", body["summary"])
				}
			})

			t.Run("unsafe SQL is rejected", func(t *testing.T) {
				status, body := server.Ask("Remove every customer", "")
				if status != http.StatusOK || body["success"] != false {
					t.Fatalf("status=%d body=%v", status, body)
				}
				if body["error"] != "Unsafe SQL rejected: statement is not SELECT or WITH" || body["sql"] != "DELETE FROM customers" {
					t.Errorf("body = %v", body)
				}
			})
		})
	}
}

func TestServerRequiresToken(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tokenFile := filepath.Join(t.TempDir(), "tokens.yaml")
	token, err := auth.GenerateToken()
	if err != nil {
		t.Fatal(err)
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		t.Fatal(err)
	}
	store := auth.NewTokenStore(nil)
	if err := store.AddToken("integration", hash, "", nil); err != nil {
		t.Fatal(err)
	}
	if err := auth.SaveTokenStore(tokenFile, store); err != nil {
		t.Fatal(err)
	}

	model := fakeModel(t, "SELECT 1")
	server := StartNLAServer(t, model.URL, unreachableDB, []string{"-auth", "-token-file", tokenFile}, false)

	if status, _ := server.Ask("What is the weather like?", ""); status != http.StatusUnauthorized {
		t.Errorf("without token status = %d", status)
	}
	if status, _ := server.Ask("What is the weather like?", "wrong"); status != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", status)
	}
	if status, body := server.Ask("What is the weather like?", token); status != http.StatusOK {
		t.Errorf("with token status = %d body=%v", status, body)
	}
}

// TestServerAgainstPostgres runs a query end to end when
// TEST_PGEDGE_NLA_DB_URL names a reachable PostgreSQL database
func TestServerAgainstPostgres(t *testing.T) {
	dbURL := os.Getenv("TEST_PGEDGE_NLA_DB_URL")
	if dbURL == "" || testing.Short() {
		t.Skip("TEST_PGEDGE_NLA_DB_URL not set, skipping PostgreSQL test")
	}

	model := fakeModel(t, "SELECT COUNT(*) AS total FROM (VALUES (1), (2), (3)) AS v(n)")
	server := StartNLAServer(t, model.URL, dbURL, nil, false)

	status, body := server.Ask("How many customers do we have?", "")
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("status=%d body=%v", status, body)
	}
	if body["summary"] != "There are 3 total." {
		t.Logf("summary = %v", body["summary"])
	}
	data, ok := body["data"].([]any)
	if !ok || len(data) != 1 || data[0].(map[string]any)["total"] != float64(3) {
		t.Errorf("data = %v", body["data"])
	}
}

func generateSelfSignedCert(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate private key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test"},
			CommonName:   "localhost",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	if err := os.WriteFile(certFile, certPEM, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}
