package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/draft"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/imagecodec"
	"github.com/pders01/chronicle/internal/media"
	"github.com/pders01/chronicle/internal/reader"
	"github.com/pders01/chronicle/internal/search"
	"github.com/pders01/chronicle/internal/submit"
)

var (
	listPage  int
	listLimit int
	listQuery string

	showRaw   bool
	showWidth int

	articleTitle       string
	articleContent     string
	articleContentFile string
	articleTags        string
	articleCategory    string
	articleImages      []string
	articleCaptions    []string
	articleRemove      []string
	articlePublish     bool

	searchOffline bool
)

var articlesCmd = &cobra.Command{
	Use:     "articles",
	Aliases: []string{"a"},
	Short:   "List, read and write articles",
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid article id %q", arg)
	}
	return id, nil
}

var articlesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published articles, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, cancel := commandContext()
		defer cancel()

		limit := listLimit
		if limit <= 0 {
			limit = cfg.Listing.PageSize
		}
		articles, err := env.client.ListArticles(ctx, gateway.ListOptions{
			Query: strings.TrimSpace(listQuery),
			Page:  listPage,
			Limit: limit,
		})
		if err != nil {
			return errors.New(gateway.UserMessage(err, "Failed to load articles"))
		}
		if err := env.store.CacheArticles(articles); err != nil {
			debuglog.Warnf("caching listed articles: %v", err)
		}
		newPrinter(cmd.OutOrStdout()).printArticles(articles, false)
		return nil
	},
}

var articlesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Read one article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, cancel := commandContext()
		defer cancel()

		snap, err := reader.New(env.client, env.store).Load(ctx, id)
		if err != nil {
			return errors.New(snap.State.Message)
		}

		renderer := reader.NewRenderer(cfg.UI.Article, media.NewLauncher(cfg).Resolve)
		out := cmd.OutOrStdout()
		if showRaw {
			fmt.Fprintln(out, renderer.Markdown(*snap.Article))
		} else {
			text, err := renderer.Render(*snap.Article, showWidth)
			if err != nil {
				return fmt.Errorf("rendering article: %w", err)
			}
			fmt.Fprint(out, text)
		}
		if snap.Offline {
			newPrinter(cmd.ErrOrStderr()).Warn("Showing cached copy, the service is unreachable")
		}
		return nil
	},
}

var articlesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one of your articles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		if _, err := env.requireUser(); err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()

		msg, err := env.client.DeleteArticle(ctx, id)
		if err != nil {
			return errors.New(gateway.UserMessage(err, "Failed to delete article"))
		}
		if msg == "" {
			msg = fmt.Sprintf("Deleted article %d", id)
		}
		newPrinter(cmd.OutOrStdout()).Success("%s", msg)
		return nil
	},
}

// findCategory matches a category by id or, case-insensitively, by name.
func findCategory(categories []gateway.Category, ref string) (*gateway.Category, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		for _, c := range categories {
			if c.ID == id {
				return &c, nil
			}
		}
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, ref) {
			return &c, nil
		}
	}
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return nil, fmt.Errorf("unknown category %q (have: %s)", ref, strings.Join(names, ", "))
}

// applyFlags copies the flags the user actually set onto d.
func applyFlags(cmd *cobra.Command, d *draft.Draft, categories []gateway.Category) error {
	flags := cmd.Flags()
	if flags.Changed("title") {
		d.UpdateField(draft.Title, articleTitle)
	}
	switch {
	case flags.Changed("content-file"):
		data, err := os.ReadFile(articleContentFile)
		if err != nil {
			return fmt.Errorf("reading content: %w", err)
		}
		d.UpdateField(draft.Content, string(data))
	case flags.Changed("content"):
		d.UpdateField(draft.Content, articleContent)
	}
	if flags.Changed("tags") {
		d.UpdateField(draft.Tags, articleTags)
	}
	if flags.Changed("category") {
		c, err := findCategory(categories, articleCategory)
		if err != nil {
			return err
		}
		d.SetCategory(c)
	}
	for _, ref := range articleRemove {
		if !d.RemovePersistedImage(ref) {
			return fmt.Errorf("article has no image %q", ref)
		}
	}
	if len(articleCaptions) > len(articleImages) {
		return errors.New("more --caption values than --image values")
	}
	staged := d.AddNewImages(articleImages...)
	for i, caption := range articleCaptions {
		d.SetCaption(staged[i].Handle, caption)
	}
	return nil
}

func statusFlag() gateway.Status {
	if articlePublish {
		return gateway.StatusPublished
	}
	return gateway.StatusDraft
}

func runSubmit(cmd *cobra.Command, e *env, d *draft.Draft, target submit.Target) error {
	ctx, cancel := commandContext()
	defer cancel()

	pipeline := submit.New(e.client, e.store, imagecodec.NewFromConfig(cfg.Upload))
	res := pipeline.Submit(ctx, d, statusFlag(), target)
	if res.Outcome != submit.Success {
		return errors.New(res.Message)
	}

	if err := e.store.DeleteDraft(draft.Key(target.ArticleID())); err != nil {
		debuglog.Warnf("dropping autosaved draft: %v", err)
	}
	newPrinter(cmd.OutOrStdout()).Success("%s", res.Message)
	return nil
}

var articlesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a new article",
	Long: `Write a new article. Without --publish it is saved as a draft.

Example:
  chronicle articles create --title "The Fall of Rome" --category Ancient \
    --content-file rome.md --tags rome,empire --image arch.png --caption "Arch"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		if _, err := env.requireUser(); err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()

		categories, err := env.client.ListCategories(ctx)
		if err != nil {
			return errors.New(gateway.UserMessage(err, "Failed to load categories"))
		}

		d := draft.New()
		if err := applyFlags(cmd, d, categories); err != nil {
			return err
		}
		return runSubmit(cmd, env, d, submit.Insert())
	},
}

var articlesEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change an existing article",
	Long: `Change an existing article. Only the flags given are changed; the
status follows --publish.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		if _, err := env.requireUser(); err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()

		d, categories, err := draft.Open(ctx, env.client, id)
		if err != nil {
			return errors.New(gateway.UserMessage(err, "Failed to load article"))
		}
		if err := applyFlags(cmd, d, categories); err != nil {
			return err
		}
		return runSubmit(cmd, env, d, submit.Update(id))
	},
}

var articlesSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search articles by title and content",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		index, err := search.OpenIndex(env.store, cfg.Database.SearchIndex)
		if err != nil {
			debuglog.Warnf("offline search disabled: %v", err)
			index = nil
		}
		if index != nil {
			defer index.Close()
		}

		p := newPrinter(cmd.OutOrStdout())
		if searchOffline {
			if index == nil {
				return errors.New("no offline index available")
			}
			articles, err := index.Search(query, cfg.Search.Limit)
			if err != nil {
				return fmt.Errorf("searching index: %w", err)
			}
			p.printArticles(articles, false)
			return nil
		}

		opts := search.Options{Limit: cfg.Search.Limit}
		if index != nil {
			opts.Offline = index
			opts.Sink = index
		}

		ctx, cancel := commandContext()
		defer cancel()

		snap, err := search.New(env.client, opts).Search(ctx, query)
		if err != nil && !snap.Offline {
			return errors.New(snap.State.Message)
		}
		if snap.Offline {
			p.Warn("Service unreachable, results from the offline index")
		}
		p.printArticles(snap.Articles, false)
		return nil
	},
}

func init() {
	articlesListCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	articlesListCmd.Flags().IntVar(&listLimit, "limit", 0, "articles per page (default from config)")
	articlesListCmd.Flags().StringVar(&listQuery, "query", "", "filter by title or content")

	articlesShowCmd.Flags().BoolVar(&showRaw, "raw", false, "print markdown instead of rendering it")
	articlesShowCmd.Flags().IntVar(&showWidth, "width", 100, "terminal width to render for")

	for _, c := range []*cobra.Command{articlesCreateCmd, articlesEditCmd} {
		f := c.Flags()
		f.StringVar(&articleTitle, "title", "", "article title")
		f.StringVar(&articleContent, "content", "", "article body (markdown)")
		f.StringVar(&articleContentFile, "content-file", "", "read the body from a file")
		f.StringVar(&articleTags, "tags", "", "comma-separated tags")
		f.StringVar(&articleCategory, "category", "", "category id or name")
		f.StringArrayVar(&articleImages, "image", nil, "image file to upload (repeatable)")
		f.StringArrayVar(&articleCaptions, "caption", nil, "caption for the matching --image")
		f.BoolVar(&articlePublish, "publish", false, "publish instead of saving a draft")
	}
	articlesEditCmd.Flags().StringArrayVar(&articleRemove, "remove-image", nil, "image reference to remove (repeatable)")

	articlesSearchCmd.Flags().BoolVar(&searchOffline, "offline", false, "search only the local index")

	articlesCmd.AddCommand(articlesListCmd, articlesShowCmd, articlesDeleteCmd,
		articlesCreateCmd, articlesEditCmd, articlesSearchCmd)
	rootCmd.AddCommand(articlesCmd)
}
