// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command server runs the password hashing service, or hashes and verifies
// passwords locally:
//
//	server                          # same as "server serve"
//	server hash 'password=x&cpu=3'  # print a PHC string
//	server verify x '$argon2id$...' # check a password
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	_ "github.com/joho/godotenv/autoload"
)

func init() {
	subcommands.Register(subcommands.HelpCommand(), "general help")
	subcommands.Register(subcommands.FlagsCommand(), "general help")
	subcommands.Register(subcommands.CommandsCommand(), "general help")
	subcommands.Register(newServeCmd(), "")
	subcommands.Register(newHashCmd(os.Stdout), "local")
	subcommands.Register(newVerifyCmd(os.Stdout), "local")
}

func main() {
	flag.Parse()
	ctx := context.Background()

	if flag.NArg() == 0 {
		os.Exit(int(newServeCmd().Execute(ctx, flag.CommandLine)))
	}
	os.Exit(int(subcommands.Execute(ctx)))
}
