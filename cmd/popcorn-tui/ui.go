package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/icco/popcorn/lib/browse"
	"github.com/icco/popcorn/lib/store"
	"github.com/icco/popcorn/models"
)

// Catalog is the part of the TMDB client the UI needs.
type Catalog interface {
	browse.Source
	Details(ctx context.Context, movieID int) (*models.Movie, error)
}

type view int

const (
	viewBrowse view = iota
	viewWatchlist
	viewFavourites
	viewDetails
)

// chrome is the number of rows taken by the header, search box and help.
const chrome = 10

type palette struct {
	primary   lipgloss.Color
	text      lipgloss.Color
	muted     lipgloss.Color
	highlight lipgloss.Color
}

var (
	darkPalette = palette{
		primary:   lipgloss.Color("#F5C518"),
		text:      lipgloss.Color("#F5F5F1"),
		muted:     lipgloss.Color("#7A7A7A"),
		highlight: lipgloss.Color("#E50914"),
	}
	lightPalette = palette{
		primary:   lipgloss.Color("#B8860B"),
		text:      lipgloss.Color("#1F1F1F"),
		muted:     lipgloss.Color("#8A8A8A"),
		highlight: lipgloss.Color("#C2185B"),
	}
)

type styles struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	text     lipgloss.Style
	muted    lipgloss.Style
	selected lipgloss.Style
	tab      lipgloss.Style
	tabOn    lipgloss.Style
	input    lipgloss.Style
	err      lipgloss.Style
}

func stylesFor(dark bool) styles {
	p := lightPalette
	if dark {
		p = darkPalette
	}
	return styles{
		title:    lipgloss.NewStyle().Foreground(p.primary).Bold(true),
		subtitle: lipgloss.NewStyle().Foreground(p.text).Bold(true),
		text:     lipgloss.NewStyle().Foreground(p.text),
		muted:    lipgloss.NewStyle().Foreground(p.muted),
		selected: lipgloss.NewStyle().Foreground(p.highlight).Bold(true),
		tab:      lipgloss.NewStyle().Foreground(p.muted).Padding(0, 1),
		tabOn:    lipgloss.NewStyle().Foreground(p.primary).Bold(true).Underline(true).Padding(0, 1),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.muted).
			Padding(0, 1),
		err: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
	}
}

// Model is the bubbletea model for the terminal client.
type Model struct {
	ctx    context.Context
	movies Catalog
	store  *store.Store

	view     view
	back     view
	loading  bool
	filter   browse.Filter
	heading  string
	results  []models.Movie
	lists    map[string][]models.Movie
	selected int
	detail   *models.Movie
	err      error
	status   string
	dark     bool

	search   textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int
}

func NewModel(ctx context.Context, movies Catalog, st *store.Store) Model {
	ti := textinput.New()
	ti.Placeholder = "Search movies..."
	ti.CharLimit = 100
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		movies:   movies,
		store:    st,
		loading:  true,
		heading:  browse.Filter{}.Title(),
		lists:    map[string][]models.Movie{},
		search:   ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.fetch(m.filter),
		m.loadList(models.SlotWatchlist),
		m.loadList(models.SlotFavorites),
		m.loadTheme(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.search.Focused() {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - chrome
		if m.detail != nil {
			m.viewport.SetContent(m.formatDetails())
		}

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case resultsMsg:
		m.loading = false
		m.heading = msg.result.Title
		m.results = msg.result.Movies
		m.err = msg.result.Err
		m.selected = clamp(m.selected, len(m.items()))

	case detailsMsg:
		m.loading = false
		m.detail = &msg.movie
		m.viewport.SetContent(m.formatDetails())
		m.viewport.GotoTop()

	case listMsg:
		m.lists[msg.slot] = msg.movies
		if msg.note != "" {
			m.status = msg.note
		}
		m.selected = clamp(m.selected, len(m.items()))
		if m.view == viewDetails && m.detail != nil {
			m.viewport.SetContent(m.formatDetails())
		}

	case themeMsg:
		m.dark = msg.dark
		if m.detail != nil {
			m.viewport.SetContent(m.formatDetails())
		}

	case errorMsg:
		m.loading = false
		m.err = msg.err

	case failedMsg:
		m.status = "Failed: " + msg.err.Error()
	}

	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.search.Blur()
		return m, nil
	case "enter":
		m.search.Blur()
		f, err := m.filter.WithQuery(m.search.Value())
		if err != nil {
			m.err = err
			return m, nil
		}
		return m.browse(f)
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "tab":
		if m.view == viewDetails {
			m.view = m.back
			m.detail = nil
		}
		m.view = (m.view + 1) % viewDetails
		m.selected = 0
		m.err = nil
		switch m.view {
		case viewWatchlist:
			return m, m.loadList(models.SlotWatchlist)
		case viewFavourites:
			return m, m.loadList(models.SlotFavorites)
		}
		return m, nil

	case "/":
		m.view = viewBrowse
		m.detail = nil
		m.search.Focus()
		return m, textinput.Blink

	case "esc":
		if m.view == viewDetails {
			m.view = m.back
			m.detail = nil
			return m, nil
		}
		if m.view == viewBrowse && !m.filter.IsZero() {
			m.search.SetValue("")
			return m.browse(browse.Filter{})
		}
		return m, nil

	case "up", "k":
		if m.view != viewDetails {
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		}

	case "down", "j":
		if m.view != viewDetails {
			if m.selected < len(m.items())-1 {
				m.selected++
			}
			return m, nil
		}

	case "enter":
		movie, ok := m.current()
		if !ok || m.view == viewDetails {
			return m, nil
		}
		m.back = m.view
		m.view = viewDetails
		m.detail = &movie
		m.viewport.SetContent(m.formatDetails())
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.details(movie.ID))

	case "w":
		if movie, ok := m.current(); ok {
			return m, m.toggle(models.SlotWatchlist, movie)
		}
		return m, nil

	case "f":
		if movie, ok := m.current(); ok {
			return m, m.toggle(models.SlotFavorites, movie)
		}
		return m, nil

	case "x", "delete":
		slot, ok := m.listSlot()
		if movie, found := m.current(); ok && found {
			return m, m.remove(slot, movie)
		}
		return m, nil

	case "d":
		return m, m.toggleTheme()
	}

	if m.view == viewDetails {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) browse(f browse.Filter) (tea.Model, tea.Cmd) {
	m.filter = f
	m.view = viewBrowse
	m.selected = 0
	m.err = nil
	m.loading = true
	return m, tea.Batch(m.spinner.Tick, m.fetch(f))
}

// items are the rows of the current list view.
func (m Model) items() []models.Movie {
	switch m.view {
	case viewWatchlist:
		return m.lists[models.SlotWatchlist]
	case viewFavourites:
		return m.lists[models.SlotFavorites]
	}
	return m.results
}

func (m Model) listSlot() (string, bool) {
	switch m.view {
	case viewWatchlist:
		return models.SlotWatchlist, true
	case viewFavourites:
		return models.SlotFavorites, true
	}
	return "", false
}

// current is the movie the list cursor or the detail pane points at.
func (m Model) current() (models.Movie, bool) {
	if m.view == viewDetails {
		if m.detail == nil {
			return models.Movie{}, false
		}
		return *m.detail, true
	}
	items := m.items()
	if m.selected < 0 || m.selected >= len(items) {
		return models.Movie{}, false
	}
	return items[m.selected], true
}

func (m Model) on(slot string, id int) bool {
	for _, movie := range m.lists[slot] {
		if movie.ID == id {
			return true
		}
	}
	return false
}

func (m Model) View() string {
	s := stylesFor(m.dark)
	var sb strings.Builder

	sb.WriteString(s.title.Render("🍿 Popcorn"))
	sb.WriteString("  ")
	sb.WriteString(m.tabs(s))
	sb.WriteString("\n\n")

	switch m.view {
	case viewBrowse:
		sb.WriteString(s.input.Render(m.search.View()))
		sb.WriteString("\n")
		sb.WriteString(s.subtitle.Render(m.heading))
		sb.WriteString("\n")
		switch {
		case m.loading:
			sb.WriteString(m.spinner.View() + " " + s.muted.Render("Loading movies..."))
		case m.err != nil:
			sb.WriteString(s.err.Render("Could not load movies: " + m.err.Error()))
		case len(m.results) == 0:
			sb.WriteString(s.muted.Render("No movies found."))
		default:
			sb.WriteString(m.rows(s, m.results))
		}

	case viewWatchlist:
		sb.WriteString(m.list(s, models.SlotWatchlist, "Your watchlist is empty."))

	case viewFavourites:
		sb.WriteString(m.list(s, models.SlotFavorites, "You have no favourite movies yet."))

	case viewDetails:
		if m.loading {
			sb.WriteString(m.spinner.View() + " " + s.muted.Render("Loading details...") + "\n")
		}
		if m.err != nil {
			sb.WriteString(s.err.Render("Could not load details: "+m.err.Error()) + "\n")
		}
		sb.WriteString(m.viewport.View())
	}

	sb.WriteString("\n\n")
	if m.status != "" {
		sb.WriteString(s.subtitle.Render(m.status))
		sb.WriteString("\n")
	}
	sb.WriteString(s.muted.Render(m.help()))

	return lipgloss.NewStyle().MaxHeight(m.height).Render(sb.String())
}

func (m Model) tabs(s styles) string {
	names := []string{
		"Browse",
		fmt.Sprintf("Watchlist (%d)", len(m.lists[models.SlotWatchlist])),
		fmt.Sprintf("Favourites (%d)", len(m.lists[models.SlotFavorites])),
	}
	active := m.view
	if active == viewDetails {
		active = m.back
	}

	out := make([]string, len(names))
	for i, name := range names {
		if view(i) == active {
			out[i] = s.tabOn.Render(name)
		} else {
			out[i] = s.tab.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, out...)
}

func (m Model) list(s styles, slot, empty string) string {
	if m.err != nil {
		return s.err.Render("Error: " + m.err.Error())
	}
	if len(m.lists[slot]) == 0 {
		return s.muted.Render(empty)
	}
	return m.rows(s, m.lists[slot])
}

func (m Model) rows(s styles, movies []models.Movie) string {
	start, end := window(len(movies), m.selected, m.height-chrome)

	var sb strings.Builder
	for i := start; i < end; i++ {
		movie := movies[i]
		marks := ""
		if m.on(models.SlotWatchlist, movie.ID) {
			marks += "★"
		}
		if m.on(models.SlotFavorites, movie.ID) {
			marks += "♥"
		}
		line := fmt.Sprintf("%-2s %s", marks, movie.Title)
		if year := movie.Year(); year != "" {
			line += " (" + year + ")"
		}
		line += fmt.Sprintf("  %.1f", movie.VoteAverage)

		if i == m.selected {
			sb.WriteString(s.selected.Render("> " + line))
		} else {
			sb.WriteString(s.text.Render("  " + line))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// window returns the slice bounds of at most size rows that keep selected
// in view.
func window(n, selected, size int) (int, int) {
	if size < 1 {
		size = 1
	}
	if n <= size {
		return 0, n
	}
	start := selected - size/2
	start = max(0, min(start, n-size))
	return start, start + size
}

func (m Model) help() string {
	switch m.view {
	case viewDetails:
		return "↑/↓: Scroll • w: Watchlist • f: Favourite • d: Theme • Esc: Back • q: Quit"
	case viewBrowse:
		return "↑/↓: Navigate • Enter: Details • /: Search • w: Watchlist • f: Favourite • Tab: Lists • d: Theme • q: Quit"
	}
	return "↑/↓: Navigate • Enter: Details • x: Remove • w: Watchlist • f: Favourite • Tab: Switch • d: Theme • q: Quit"
}

func (m Model) formatDetails() string {
	if m.detail == nil {
		return ""
	}
	s := stylesFor(m.dark)
	movie := m.detail

	var sb strings.Builder
	heading := movie.Title
	if year := movie.Year(); year != "" {
		heading += " (" + year + ")"
	}
	sb.WriteString(s.title.Render(heading))
	sb.WriteString("\n\n")

	sb.WriteString(s.text.Render(fmt.Sprintf("Rating: %.1f / 10", movie.VoteAverage)))
	sb.WriteString("\n")
	if movie.ReleaseDate != "" {
		sb.WriteString(s.text.Render("Released: " + movie.ReleaseDate))
		sb.WriteString("\n")
	}
	if movie.OriginalLanguage != "" {
		sb.WriteString(s.text.Render("Language: " + browse.LanguageName(movie.OriginalLanguage)))
		sb.WriteString("\n")
	}
	if genres := genreNames(*movie); len(genres) > 0 {
		sb.WriteString(s.text.Render("Genres: " + strings.Join(genres, ", ")))
		sb.WriteString("\n")
	}

	var badges []string
	if m.on(models.SlotWatchlist, movie.ID) {
		badges = append(badges, "★ On your watchlist")
	}
	if m.on(models.SlotFavorites, movie.ID) {
		badges = append(badges, "♥ Favourite")
	}
	if len(badges) > 0 {
		sb.WriteString(s.selected.Render(strings.Join(badges, "   ")))
		sb.WriteString("\n")
	}

	if movie.Overview != "" {
		sb.WriteString("\n")
		sb.WriteString(s.subtitle.Render("Overview"))
		sb.WriteString("\n")
		width := max(m.viewport.Width-4, 20)
		sb.WriteString(s.text.Width(width).Render(movie.Overview))
	}
	return sb.String()
}

func genreNames(movie models.Movie) []string {
	if len(movie.Genres) > 0 {
		out := make([]string, 0, len(movie.Genres))
		for _, g := range movie.Genres {
			out = append(out, g.Name)
		}
		return out
	}
	out := make([]string, 0, len(movie.GenreIDs))
	for _, id := range movie.GenreIDs {
		if name := browse.GenreName(id); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	return max(i, 0)
}

func (m Model) fetch(f browse.Filter) tea.Cmd {
	ctx, src := m.ctx, m.movies
	return func() tea.Msg {
		return resultsMsg{result: browse.Fetch(ctx, src, f)}
	}
}

func (m Model) details(id int) tea.Cmd {
	ctx, src := m.ctx, m.movies
	return func() tea.Msg {
		movie, err := src.Details(ctx, id)
		if err != nil {
			return errorMsg{err: err}
		}
		return detailsMsg{movie: *movie}
	}
}

func (m Model) loadList(slot string) tea.Cmd {
	ctx, st := m.ctx, m.store
	return func() tea.Msg {
		return listMsg{slot: slot, movies: st.Load(ctx, slot)}
	}
}

func (m Model) loadTheme() tea.Cmd {
	ctx, st := m.ctx, m.store
	return func() tea.Msg {
		return themeMsg{dark: st.DarkMode(ctx)}
	}
}

// toggle flips membership of movie in slot. Favourites are stored with
// full details when TMDB can supply them.
func (m Model) toggle(slot string, movie models.Movie) tea.Cmd {
	ctx, st, src := m.ctx, m.store, m.movies
	return func() tea.Msg {
		adding := !st.Contains(ctx, slot, movie.ID)
		if adding && slot == models.SlotFavorites && !movie.HasDetails() {
			if full, err := src.Details(ctx, movie.ID); err == nil {
				movie = *full
			}
		}

		list, err := st.Toggle(ctx, slot, movie)
		if err != nil {
			return failedMsg{err: err}
		}
		return listMsg{slot: slot, movies: list, note: note(adding, slot, movie.Title)}
	}
}

func (m Model) remove(slot string, movie models.Movie) tea.Cmd {
	ctx, st := m.ctx, m.store
	return func() tea.Msg {
		list, err := st.Remove(ctx, slot, movie.ID)
		if err != nil {
			return failedMsg{err: err}
		}
		return listMsg{slot: slot, movies: list, note: note(false, slot, movie.Title)}
	}
}

func (m Model) toggleTheme() tea.Cmd {
	ctx, st := m.ctx, m.store
	return func() tea.Msg {
		dark, err := st.ToggleDarkMode(ctx)
		if err != nil {
			return failedMsg{err: err}
		}
		return themeMsg{dark: dark}
	}
}

func note(added bool, slot, title string) string {
	name := "watchlist"
	if slot == models.SlotFavorites {
		name = "favourites"
	}
	if added {
		return fmt.Sprintf("Added %s to %s", title, name)
	}
	return fmt.Sprintf("Removed %s from %s", title, name)
}

type resultsMsg struct {
	result browse.Result
}

type detailsMsg struct {
	movie models.Movie
}

type listMsg struct {
	slot   string
	movies []models.Movie
	note   string
}

type themeMsg struct {
	dark bool
}

type errorMsg struct {
	err error
}

// failedMsg reports a store write that did not happen.
type failedMsg struct {
	err error
}
