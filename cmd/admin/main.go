package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

const (
	defaultAPI = "http://localhost:8080"
)

type apiResponse struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Value   json.RawMessage `json:"value"`
}

type client struct {
	base string
	repo string
	http *http.Client
}

func main() {
	api := flag.String("api", envDefault("OBJSTORE_API", defaultAPI), "Base URL of the objstore REST API")
	repo := flag.String("repo", envDefault("OBJSTORE_REPO", ""), "Repository name (required)")
	dumpJSON := flag.Bool("json", false, "Print the raw JSON response")
	flag.Usage = usage
	flag.Parse()

	if *repo == "" {
		fmt.Fprintln(os.Stderr, "--repo is required")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	c := &client{base: strings.TrimRight(*api, "/") + "/api/v1", repo: *repo, http: http.DefaultClient}
	method, path, body, err := c.request(flag.Arg(0), flag.Args()[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	raw, resp, err := c.do(method, path, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}

	if *dumpJSON {
		var out bytes.Buffer
		if json.Indent(&out, raw, "", "  ") == nil {
			raw = out.Bytes()
		}
		fmt.Println(strings.TrimSpace(string(raw)))
	} else {
		fmt.Println(render(flag.Arg(0), resp))
	}
	if !resp.OK {
		os.Exit(1)
	}
}

// request maps a command line onto an API call.
func (c *client) request(cmd string, args []string) (string, string, io.Reader, error) {
	repoPath := "/repos/" + url.PathEscape(c.repo)

	need := func(n int, form string) error {
		if len(args) < n {
			return fmt.Errorf("usage: admin -repo NAME %s", form)
		}
		return nil
	}

	switch cmd {
	case "init":
		return http.MethodPost, "/repos", jsonBody(map[string]string{"name": c.repo}), nil
	case "add":
		if err := need(2, "add NAME VALUE"); err != nil {
			return "", "", nil, err
		}
		return http.MethodPut, repoPath + "/stage/" + url.PathEscape(args[0]), strings.NewReader(args[1]), nil
	case "rm":
		if err := need(1, "rm NAME"); err != nil {
			return "", "", nil, err
		}
		return http.MethodDelete, repoPath + "/stage/" + url.PathEscape(args[0]), nil, nil
	case "commit":
		if err := need(1, "commit MESSAGE"); err != nil {
			return "", "", nil, err
		}
		return http.MethodPost, repoPath + "/commits", jsonBody(map[string]string{"message": strings.Join(args, " ")}), nil
	case "head":
		return http.MethodGet, repoPath + "/head", nil, nil
	case "log":
		return http.MethodGet, repoPath + "/commits", nil, nil
	case "checkout":
		if err := need(1, "checkout HASH"); err != nil {
			return "", "", nil, err
		}
		return http.MethodPost, repoPath + "/checkout", jsonBody(map[string]string{"hash": args[0]}), nil
	case "get":
		if err := need(1, "get NAME"); err != nil {
			return "", "", nil, err
		}
		return http.MethodGet, repoPath + "/objects/" + url.PathEscape(args[0]), nil, nil
	case "status":
		return http.MethodGet, repoPath + "/status", nil, nil
	case "branch":
		return c.branchRequest(repoPath, args)
	case "save":
		return http.MethodPost, repoPath + "/snapshots", nil, nil
	case "drop":
		if err := need(1, "drop DIGEST"); err != nil {
			return "", "", nil, err
		}
		return http.MethodDelete, repoPath + "/snapshots/" + url.PathEscape(args[0]), nil, nil
	case "restore":
		ref := ""
		if len(args) > 0 {
			ref = args[0]
		}
		return http.MethodPost, repoPath + "/restore", jsonBody(map[string]string{"ref": ref}), nil
	default:
		return "", "", nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *client) branchRequest(repoPath string, args []string) (string, string, io.Reader, error) {
	if len(args) == 0 || args[0] == "list" {
		return http.MethodGet, repoPath + "/branches", nil, nil
	}
	if len(args) < 2 {
		return "", "", nil, fmt.Errorf("usage: admin -repo NAME branch [list|create NAME|checkout NAME|rm NAME]")
	}
	branchPath := repoPath + "/branches/" + url.PathEscape(args[1])
	switch args[0] {
	case "create":
		return http.MethodPost, repoPath + "/branches", jsonBody(map[string]string{"name": args[1]}), nil
	case "checkout":
		return http.MethodPost, branchPath + "/checkout", nil, nil
	case "rm":
		return http.MethodDelete, branchPath, nil, nil
	default:
		return "", "", nil, fmt.Errorf("unknown branch command %q", args[0])
	}
}

func (c *client) do(method, path string, body io.Reader) ([]byte, apiResponse, error) {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return nil, apiResponse{}, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apiResponse{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apiResponse{}, fmt.Errorf("read response: %w", err)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		// Endpoints outside the Result envelope return bare values.
		out = apiResponse{Value: raw}
	}
	if out.Message == "" && out.Error == "" && resp.StatusCode < 300 {
		out.OK = true
	}
	if out.Message == "" && out.Error != "" {
		out.Message = out.Error
	}
	if out.Message == "" && resp.StatusCode >= 300 {
		out.Message = resp.Status
	}
	return raw, out, nil
}

func render(cmd string, resp apiResponse) string {
	if cmd == "get" && resp.OK {
		var value string
		if json.Unmarshal(resp.Value, &value) == nil {
			return resp.Message + "\n" + value
		}
	}
	if resp.Message != "" {
		return resp.Message
	}
	if cmd == "init" && resp.OK {
		var created struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(resp.Value, &created) == nil && created.Name != "" {
			return "Initialized repository " + created.Name + "."
		}
	}
	return strings.TrimSpace(string(resp.Value))
}

func jsonBody(v any) io.Reader {
	data, _ := json.Marshal(v)
	return bytes.NewReader(data)
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: admin [-api URL] [-json] -repo NAME <command> [args]

commands:
  init                      create the repository
  add NAME VALUE            stage an object
  rm NAME                   stage a committed object for removal
  commit MESSAGE            commit staged changes
  head                      show the latest commit
  log                       show the branch history
  checkout HASH             move the branch back to a commit
  get NAME                  print a committed object
  status                    show pending changes
  branch [list]             list branches
  branch create NAME        create a branch from the current one
  branch checkout NAME      switch branches
  branch rm NAME            remove a branch
  save                      write a snapshot to the archive
  restore [DIGEST]          restore the latest or a given snapshot
  drop DIGEST               delete a stored snapshot other than the latest
`)
	flag.PrintDefaults()
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
