package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/auth"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string, out io.Writer) error {
	switch command {
	case "token":
		return mintToken(args, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	}

	client := newAPIClient(getAPIURL(), os.Getenv("COMPLAINTDESK_TOKEN"), os.Getenv("COMPLAINTDESK_TENANT"))
	switch command {
	case "list":
		return listComplaints(client, args, out)
	case "get":
		return getComplaint(client, args, out)
	case "submit":
		return submit(client, args, out, false)
	case "submit-agent":
		return submit(client, args, out, true)
	case "assign":
		return assignSupport(client, args, out)
	case "solve":
		return addSolution(client, args, out)
	case "status":
		return setStatus(client, args, out)
	case "delete":
		return deleteComplaint(client, args, out)
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

// mintToken signs a development token with JWT_SECRET. The server must share
// the secret and issuer.
func mintToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("sub", "", "subject id")
	email := fs.String("email", "", "subject email")
	tenant := fs.String("tenant", "", "organization type claim (optional)")
	role := fs.String("role", "", "role claim (optional)")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		fs.PrintDefaults()
		return fmt.Errorf("-sub is required")
	}

	tm := auth.NewTokenManager(os.Getenv("JWT_SECRET"), os.Getenv("JWT_ISSUER"))
	token, err := tm.GenerateToken(auth.TokenRequest{
		SubjectID: *subject,
		Email:     *email,
		Tenant:    *tenant,
		Role:      *role,
		ExpiresIn: *ttl,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func listComplaints(client *apiClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	all := fs.Bool("all", false, "list every complaint in the tenant (agent/admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := "/api/complaints"
	if *all {
		path += "/all"
	}
	var complaints []domain.Complaint
	if err := client.do(http.MethodGet, path, nil, &complaints); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCONSUMER\tSUPPORT\tCREATED\tTITLE")
	for _, c := range complaints {
		support := "-"
		if c.Support != nil {
			support = c.Support.Email
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Status, c.ConsumerEmail, support, formatTime(c.CreatedAt), c.Title)
	}
	return w.Flush()
}

func getComplaint(client *apiClient, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: complaintctl get <complaint-id>")
	}

	var c domain.Complaint
	if err := client.do(http.MethodGet, "/api/complaints/"+args[0], nil, &c); err != nil {
		return err
	}
	printComplaint(out, &c)
	return nil
}

func submit(client *apiClient, args []string, out io.Writer, onBehalf bool) error {
	name := "submit"
	if onBehalf {
		name = "submit-agent"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	title := fs.String("title", "", "complaint title")
	category := fs.String("category", "", "category id")
	description := fs.String("description", "", "complaint description")
	attachment := fs.String("attachment", "", "attachment reference (optional)")
	consumer := fs.String("consumer", "", "consumer email (submit-agent only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	payload := map[string]string{
		"title":       *title,
		"category_id": *category,
		"description": *description,
	}
	if *attachment != "" {
		payload["attachment"] = *attachment
	}
	path := "/api/complaints"
	if onBehalf {
		if *consumer == "" {
			fs.PrintDefaults()
			return fmt.Errorf("-consumer is required")
		}
		payload["consumer_email"] = *consumer
		path += "/agent"
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := client.do(http.MethodPost, path, payload, &created); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Complaint created: %s\n", created.ID)
	return nil
}

func assignSupport(client *apiClient, args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: complaintctl assign <complaint-id> <support-email>")
	}

	payload := map[string]string{"support_email": args[1]}
	if err := client.do(http.MethodPatch, "/api/complaints/"+args[0]+"/assign", payload, nil); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Support %s assigned to %s\n", args[1], args[0])
	return nil
}

func addSolution(client *apiClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	resolve := fs.Bool("resolve", false, "mark the complaint resolved")
	status := fs.String("status", "", "explicit status override")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: complaintctl solve [-resolve] <complaint-id> <solution text>")
	}

	id := fs.Arg(0)
	payload := map[string]interface{}{
		"solution_text": strings.Join(fs.Args()[1:], " "),
		"markResolved":  *resolve,
	}
	if *status != "" {
		payload["status"] = *status
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := client.do(http.MethodPatch, "/api/complaints/"+id+"/solution", payload, &result); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Solution saved for %s (status: %s)\n", id, result.Status)
	return nil
}

func setStatus(client *apiClient, args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: complaintctl status <complaint-id> <pending|in-progress|resolved>")
	}
	if _, ok := domain.ParseStatus(args[1]); !ok {
		return fmt.Errorf("invalid status: %s", args[1])
	}

	var c domain.Complaint
	if err := client.do(http.MethodPatch, "/api/complaints/"+args[0], map[string]string{"status": args[1]}, &c); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Complaint %s is now %s\n", c.ID, c.Status)
	return nil
}

func deleteComplaint(client *apiClient, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: complaintctl delete <complaint-id>")
	}

	if err := client.do(http.MethodDelete, "/api/complaints/"+args[0], nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Complaint %s deleted\n", args[0])
	return nil
}

func printComplaint(out io.Writer, c *domain.Complaint) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", c.ID)
	fmt.Fprintf(w, "Title\t%s\n", c.Title)
	fmt.Fprintf(w, "Status\t%s\n", c.Status)
	fmt.Fprintf(w, "Category\t%s\n", c.CategoryID)
	fmt.Fprintf(w, "Consumer\t%s\n", c.ConsumerEmail)
	fmt.Fprintf(w, "Source\t%s\n", c.Source)
	if c.Support != nil {
		fmt.Fprintf(w, "Support\t%s <%s>\n", c.Support.Name, c.Support.Email)
	}
	if c.Solution != nil {
		fmt.Fprintf(w, "Solution\t%s (by %s)\n", c.Solution.Text, c.Solution.AgentName)
	}
	fmt.Fprintf(w, "Created\t%s\n", formatTime(c.CreatedAt))
	fmt.Fprintf(w, "Updated\t%s\n", formatTime(c.UpdatedAt))
	if c.ResolvedAt != nil {
		fmt.Fprintf(w, "Resolved\t%s\n", formatTime(*c.ResolvedAt))
	}
	fmt.Fprintf(w, "Description\t%s\n", c.Description)
	for _, n := range c.Notes {
		fmt.Fprintf(w, "Note\t%s: %s\n", formatTime(n.CreatedAt), n.Text)
	}
	w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func getAPIURL() string {
	if url := os.Getenv("COMPLAINTDESK_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `complaintctl - complaintdesk operator CLI

Usage:
  complaintctl <command> [options]

Commands:
  token         Mint a development token (-sub, -email, -tenant, -role, -ttl)
  list          List your complaints (-all for every complaint in the tenant)
  get           Show one complaint
  submit        File a complaint (-title, -category, -description)
  submit-agent  Log a complaint for a consumer (-consumer, -category, -description, -title)
  assign        Assign a support engineer: assign <id> <support-email>
  solve         Record a solution: solve [-resolve] <id> <text>
  status        Change status: status <id> <pending|in-progress|resolved>
  delete        Delete a complaint (admin)
  help          Show this help message

Environment Variables:
  COMPLAINTDESK_URL     API endpoint (default: http://localhost:8080)
  COMPLAINTDESK_TOKEN   Bearer token sent with every request
  COMPLAINTDESK_TENANT  Optional X-Org-Type tenant hint
  JWT_SECRET            Secret used by the token command

Examples:
  export COMPLAINTDESK_TOKEN=$(complaintctl token -sub u1 -email you@example.com)
  complaintctl submit -title "ATM issue" -category c1 -description "card swallowed"
  complaintctl solve -resolve 3f2a... "replaced the card"
`)
}
