// Package fcgx is a minimal, robust FastCGI (version 1) client library for Go.
//
// It speaks the client side of the protocol to a Responder-role application
// process such as PHP-FPM: it frames and sends BEGIN_REQUEST/PARAMS/STDIN
// records over any duplex byte stream, then reassembles STDOUT/STDERR until
// END_REQUEST. It does not implement the server/responder side, connection
// multiplexing, or the Authorizer/Filter roles.
//
// Example usage:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
//	defer cancel()
//
//	conn, err := fcgx.DialContext(ctx, "unix", "/var/run/php-fpm.sock")
//	if err != nil {
//		panic(err)
//	}
//	client := fcgx.NewKeepAlive(conn)
//	defer client.Close()
//
//	params := fcgx.NewParams().
//		RequestMethod("GET").
//		ScriptFilename("/usr/share/phpmyadmin/index.php").
//		ScriptName("/index.php").
//		ServerProtocol("HTTP/1.1").
//		RemoteAddr("127.0.0.1")
//
//	resp, err := client.Execute(ctx, fcgx.NewRequest(params, nil))
//	if err != nil {
//		panic(err)
//	}
//	fmt.Println(string(resp.Stdout))
package fcgx
