// Command client is the terminal front end for the marketplace: the same
// flows the web pages offer (login, profile, browsing, managing listings),
// built on the pkg/api services.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/enchanted/marketplace/pkg/api"
	"github.com/enchanted/marketplace/pkg/session"
)

var serverBaseURL = "http://localhost:8080"

func main() {
	cmd := flag.String("cmd", "", "Command: register|login|logout|profile|update-email|products|my-products|new|update|delete|search|health")
	serverFlag := flag.String("server", "", "Override server base URL")
	username := flag.String("username", "", "Username (register/login)")
	password := flag.String("password", "", "Password (register/login)")
	email := flag.String("email", "", "Email (register/update-email)")
	id := flag.Uint("id", 0, "Product ID (update/delete)")
	title := flag.String("title", "", "Product title")
	description := flag.String("description", "", "Product description")
	price := flag.Float64("price", 0, "Product price")
	category := flag.String("category", "", "Product category")
	image := flag.String("image", "", "Path to product image (optional)")
	query := flag.String("q", "", "Search query")
	flag.Parse()

	if env := os.Getenv("MARKETPLACE_SERVER"); env != "" {
		serverBaseURL = strings.TrimRight(env, "/")
	}
	if *serverFlag != "" {
		serverBaseURL = strings.TrimRight(*serverFlag, "/")
	}

	storePath, err := session.DefaultPath()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	store := session.NewStore(storePath)
	users := api.NewUserService(serverBaseURL, store)
	products := api.NewProductService(serverBaseURL, store)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch *cmd {
	case "register":
		u, p, e := *username, *password, *email
		if u == "" || p == "" || e == "" {
			u, p, e = promptCredentials(true)
		}
		user, err := users.Register(ctx, u, p, e)
		exitOn(err, store)
		fmt.Printf("Account created for %s. You can now log in.\n", user.Username)

	case "login":
		u, p := *username, *password
		if u == "" || p == "" {
			u, p, _ = promptCredentials(false)
		}
		res, err := users.Login(ctx, u, p)
		exitOn(err, store)
		fmt.Printf("Logged in as %s (%s)\n", res.User.Username, res.User.Email)

	case "logout":
		users.Logout()
		fmt.Println("Logged out.")

	case "profile":
		requireLogin(users)
		user, err := users.GetProfile(ctx)
		exitOn(err, store)
		fmt.Printf("id:       %d\nusername: %s\nemail:    %s\nsince:    %s\n",
			user.ID, user.Username, user.Email, user.CreatedAt.Format("2006-01-02"))

	case "update-email":
		requireLogin(users)
		if *email == "" {
			fmt.Println("--email required")
			os.Exit(1)
		}
		user, err := users.UpdateProfile(ctx, *email)
		exitOn(err, store)
		// The service does not refresh the cached user, show the fresh one
		// from the response instead.
		fmt.Printf("Email updated to %s\n", user.Email)

	case "products":
		list, err := products.GetProducts(ctx)
		exitOn(err, store)
		printProducts(list.Products, products)

	case "my-products":
		requireLogin(users)
		list, err := products.GetMyProducts(ctx)
		exitOn(err, store)
		printProducts(list.Products, products)

	case "new":
		requireLogin(users)
		if *title == "" || *price <= 0 || *category == "" {
			fmt.Println("--title, --price and --category required")
			os.Exit(1)
		}
		product, err := products.CreateProduct(ctx, api.CreateProductInput{
			Title:       *title,
			Description: *description,
			Price:       *price,
			Category:    *category,
		})
		exitOn(err, store)
		fmt.Printf("Listing #%d created\n", product.ID)

		if *image != "" {
			// Image upload is best effort, the listing already exists.
			if err := uploadImage(ctx, products, product.ID, *image); err != nil {
				fmt.Printf("Warning: image not attached: %v\n", err)
			} else {
				fmt.Println("Image attached.")
			}
		}

	case "update":
		requireLogin(users)
		if *id == 0 {
			fmt.Println("--id required")
			os.Exit(1)
		}
		product, err := products.UpdateProduct(ctx, *id, api.UpdateProductInput{
			Title:       *title,
			Description: *description,
			Price:       *price,
			Category:    *category,
		})
		exitOn(err, store)
		fmt.Printf("Listing #%d updated\n", product.ID)

		if *image != "" {
			if err := uploadImage(ctx, products, product.ID, *image); err != nil {
				fmt.Printf("Warning: image not attached: %v\n", err)
			}
		}

	case "delete":
		requireLogin(users)
		if *id == 0 {
			fmt.Println("--id required")
			os.Exit(1)
		}
		exitOn(products.DeleteProduct(ctx, *id), store)
		fmt.Printf("Listing #%d deleted\n", *id)

	case "search":
		if *query == "" {
			fmt.Println("--q required")
			os.Exit(1)
		}
		res, err := products.Search(ctx, *query)
		exitOn(err, store)
		fmt.Printf("%d result(s)\n", res.Total)
		printProducts(res.Products, products)

	case "health":
		h, err := users.HealthCheck(ctx)
		exitOn(err, store)
		fmt.Printf("%s: %s\n", h.Service, h.Status)

	default:
		flag.Usage()
		os.Exit(1)
	}
}

// exitOn is the single place that reacts to an expired session: it clears
// the store and sends the user back to login, the CLI analogue of the web
// client's forced /login navigation.
func exitOn(err error, store *session.Store) {
	if err == nil {
		return
	}
	if errors.Is(err, api.ErrUnauthenticated) {
		_ = store.Clear()
		fmt.Println("Session expired. Please log in again with -cmd login.")
		os.Exit(1)
	}
	fmt.Println("Error:", err)
	os.Exit(1)
}

func requireLogin(users *api.UserService) {
	if !users.IsAuthenticated() {
		fmt.Println("Not logged in. Run with -cmd login first.")
		os.Exit(1)
	}
	if u := users.CurrentUser(); u != nil {
		fmt.Printf("[%s]\n", u.Username)
	}
}

func uploadImage(ctx context.Context, products *api.ProductService, id uint, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = products.UploadProductImage(ctx, id, filepath.Base(path), f)
	return err
}

func printProducts(items []api.Product, products *api.ProductService) {
	if len(items) == 0 {
		fmt.Println("No products yet.")
		return
	}
	for _, p := range items {
		fmt.Printf("#%d  %-30s  %8.2f  %-12s", p.ID, p.Title, p.Price, p.Category)
		if p.ImageURL != "" {
			fmt.Printf("  %s", products.ImageURL(filepath.Base(p.ImageURL)))
		}
		fmt.Println()
	}
}

func promptCredentials(withEmail bool) (string, string, string) {
	r := bufio.NewReader(os.Stdin)
	fmt.Print("Username: ")
	u, _ := r.ReadString('\n')
	fmt.Print("Password: ")
	p, _ := r.ReadString('\n')
	var e string
	if withEmail {
		fmt.Print("Email: ")
		e, _ = r.ReadString('\n')
	}
	return strings.TrimSpace(u), strings.TrimSpace(p), strings.TrimSpace(e)
}
