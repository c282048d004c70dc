package parser

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-lang/lattice/internal/ast"
)

func parseOne(t *testing.T, src string) ast.Node {
	t.Helper()
	node, err := ParseDocument("test.ltc", src)
	require.NoError(t, err)
	require.NotNil(t, node)
	return node
}

func parseErr(t *testing.T, src string) error {
	t.Helper()
	node, err := ParseDocument("test.ltc", src)
	require.Error(t, err)
	assert.Nil(t, node, "a parse error must not return a partial AST")
	return err
}

func TestInjectNamespace(t *testing.T) {
	t.Run("injects on bare root", func(t *testing.T) {
		out := InjectNamespace(`<component name="Cart"><set name="x" value="1"/></component>`)
		assert.Contains(t, out, `<component name="Cart" xmlns="`+DefaultNamespace+`">`)
	})

	t.Run("idempotent", func(t *testing.T) {
		src := `<component name="Cart" xmlns="` + DefaultNamespace + `"/>`
		assert.Equal(t, src, InjectNamespace(src))
		assert.Equal(t, InjectNamespace(src), InjectNamespace(InjectNamespace(src)))
	})

	t.Run("prefixed root", func(t *testing.T) {
		src := `<lat:application id="shop" xmlns:lat="` + DefaultNamespace + `"/>`
		assert.Equal(t, src, InjectNamespace(src))
	})

	t.Run("self-closing root", func(t *testing.T) {
		out := InjectNamespace(`<job name="sync"/>`)
		assert.Equal(t, `<job name="sync" xmlns="`+DefaultNamespace+`"/>`, out)
	})
}

func TestRegistryRegister(t *testing.T) {
	r := New()
	err := r.Register(&setParser{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tag "set" already registered`)
	assert.NotNil(t, r.Lookup("query"))
	assert.Nil(t, r.Lookup("nosuchtag"))
}

func TestParseApplication(t *testing.T) {
	src := `
<application id="shop" type="web">
  <datasource name="db" type="postgres" url="postgres://localhost/shop"/>
  <datasource name="ai" type="llm" model="gpt-4o"/>
  <route path="/" component="Home" title="Shop"/>
  <component name="Home">
    <set name="greeting" value="hello"/>
  </component>
</application>`
	app, ok := parseOne(t, src).(*ast.Application)
	require.True(t, ok)
	assert.Equal(t, "shop", app.ID)
	assert.Equal(t, "web", app.AppKind)
	require.Len(t, app.Datasources, 2)
	assert.Equal(t, ast.DatasourcePostgres, app.Datasources[0].DSKind)
	require.Len(t, app.Routes, 1)
	assert.Equal(t, "Home", app.Routes[0].Component)
	require.Len(t, app.Components, 1)
	require.Len(t, app.Components[0].Statements, 1)
	assert.Equal(t, ast.KindSet, app.Components[0].Statements[0].Kind())
}

func TestParseComponentWithFunctions(t *testing.T) {
	src := `
<component name="Calculator" type="pure">
  <param name="precision" type="number" default="2"/>
  <function name="add" returns="number" cache="true" cache_ttl="60" memoize="true">
    <param name="a" type="number" required="true"/>
    <param name="b" type="number" required="true"/>
    <return value="{a + b}"/>
  </function>
</component>`
	c, ok := parseOne(t, src).(*ast.Component)
	require.True(t, ok)
	assert.Equal(t, ast.ComponentPure, c.CompKind)
	require.Len(t, c.Params, 1)
	require.Len(t, c.Functions, 1)

	f := c.Functions[0]
	assert.True(t, f.Cache)
	assert.Equal(t, 60, f.CacheTTL)
	assert.True(t, f.Memoize)
	require.Len(t, f.Params, 2)
	assert.True(t, f.Params[0].Required)
	require.Len(t, f.Body, 1)
	assert.Equal(t, ast.KindReturn, f.Body[0].Kind())
}

func TestParseRestConfig(t *testing.T) {
	src := `
<component name="Users">
  <function name="getUser" returns="object">
    <param name="id" type="number" required="true"/>
    <rest endpoint="/users/{id}" method="get" auth="jwt" roles="admin, support" status="200"/>
    <return value="{id}"/>
  </function>
</component>`
	c := parseOne(t, src).(*ast.Component)
	rest := c.Functions[0].Rest
	require.NotNil(t, rest)
	assert.Equal(t, "GET", rest.Method)
	assert.Equal(t, "jwt", rest.Auth)
	assert.Equal(t, []string{"admin", "support"}, rest.Roles)
	assert.Equal(t, 200, rest.Status)
}

func TestParseIf(t *testing.T) {
	src := `
<component name="Grade">
  <function name="grade" returns="string">
    <param name="score" type="number"/>
    <if condition="score >= 90">
      <return value="A"/>
      <elseif condition="score >= 80">
        <return value="B"/>
      </elseif>
      <else>
        <return value="F"/>
      </else>
    </if>
  </function>
</component>`
	c := parseOne(t, src).(*ast.Component)
	i, ok := c.Functions[0].Body[0].(*ast.If)
	require.True(t, ok)
	assert.Equal(t, "score >= 90", i.Cond)
	require.Len(t, i.Then, 1)
	require.Len(t, i.ElseIfs, 1)
	assert.Equal(t, "score >= 80", i.ElseIfs[0].Cond)
	require.Len(t, i.Else, 1)
}

func TestParseLoop(t *testing.T) {
	t.Run("explicit range", func(t *testing.T) {
		src := `<component name="C"><loop var="i" type="range" from="1" to="5" step="2"><set name="x" value="{i}"/></loop></component>`
		c := parseOne(t, src).(*ast.Component)
		l := c.Statements[0].(*ast.Loop)
		assert.Equal(t, ast.LoopRange, l.LoopKind)
		assert.Equal(t, "2", l.Step)
	})

	t.Run("inferred kinds", func(t *testing.T) {
		tests := []struct {
			attrs string
			want  ast.LoopKind
		}{
			{`var="i" from="1" to="3"`, ast.LoopRange},
			{`var="row" query="users"`, ast.LoopQuery},
			{`var="part" items="a;b;c" delimiter=";"`, ast.LoopList},
			{`var="item" items="{things}"`, ast.LoopArray},
		}
		for _, tt := range tests {
			src := `<component name="C"><loop ` + tt.attrs + `><set name="x" value="1"/></loop></component>`
			c := parseOne(t, src).(*ast.Component)
			assert.Equal(t, tt.want, c.Statements[0].(*ast.Loop).LoopKind, tt.attrs)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		err := parseErr(t, `<component name="C"><loop var="i" type="while"/></component>`)
		assert.Contains(t, err.Error(), `unknown loop type "while"`)
	})
}

func TestParseQuery(t *testing.T) {
	appWrap := func(query string) string {
		return `<application id="a"><datasource name="db" type="postgres"/><component name="C">` +
			query + `</component></application>`
	}

	t.Run("placeholders with declared params", func(t *testing.T) {
		src := appWrap(`
<query name="users" datasource="db">
  SELECT * FROM users WHERE age > :min_age
  <param name="min_age" type="number" value="{threshold}"/>
</query>`)
		app := parseOne(t, src).(*ast.Application)
		q, ok := app.Components[0].Statements[0].(*ast.Query)
		require.True(t, ok)
		assert.Equal(t, []string{"min_age"}, q.Placeholders())
		assert.Equal(t, "{threshold}", q.Params[0].Value)
		assert.Equal(t, "SELECT * FROM users WHERE age > :min_age", q.SQL)
	})

	t.Run("interpolation rejected", func(t *testing.T) {
		err := parseErr(t, appWrap(`<query name="users" datasource="db">SELECT * FROM users WHERE name = '{userName}'</query>`))
		assert.Contains(t, err.Error(), "interpolation of {userName}")
	})

	t.Run("undeclared placeholder rejected", func(t *testing.T) {
		err := parseErr(t, appWrap(`<query name="users" datasource="db">SELECT * FROM users WHERE id = :id</query>`))
		assert.Contains(t, err.Error(), "placeholder :id has no declared <param>")
	})

	t.Run("sql child element", func(t *testing.T) {
		src := appWrap(`<query name="n" datasource="db"><sql>SELECT 1</sql></query>`)
		app := parseOne(t, src).(*ast.Application)
		q := app.Components[0].Statements[0].(*ast.Query)
		assert.Equal(t, "SELECT 1", q.SQL)
	})
}

func TestMagicConversion(t *testing.T) {
	t.Run("llm datasource becomes LLMGenerate", func(t *testing.T) {
		src := `
<application id="a">
  <datasource name="ai" type="llm" model="gpt-4o"/>
  <component name="C">
    <query name="answer" datasource="ai" temperature="0.2">Summarize {document}</query>
  </component>
</application>`
		app := parseOne(t, src).(*ast.Application)
		g, ok := app.Components[0].Statements[0].(*ast.LLMGenerate)
		require.True(t, ok, "query against llm datasource must become LLMGenerate")
		assert.Equal(t, "gpt-4o", g.Model)
		assert.Equal(t, "Summarize {document}", g.Prompt)
		require.NotNil(t, g.Temperature)
		assert.InDelta(t, 0.2, *g.Temperature, 1e-9)
	})

	t.Run("knowledge datasource becomes Search", func(t *testing.T) {
		src := `
<application id="a">
  <datasource name="kb" type="knowledge" url="http://kb.local"/>
  <component name="C">
    <query name="docs" datasource="kb" limit="5">refund policy</query>
  </component>
</application>`
		app := parseOne(t, src).(*ast.Application)
		s, ok := app.Components[0].Statements[0].(*ast.Search)
		require.True(t, ok, "query against knowledge datasource must become Search")
		assert.Equal(t, "refund policy", s.Query)
		assert.Equal(t, 5, s.Limit)
	})

	t.Run("prompt interpolation allowed", func(t *testing.T) {
		// The injection guard applies to SQL text only, not prompts.
		src := `
<application id="a">
  <datasource name="ai" type="llm"/>
  <component name="C"><query name="x" datasource="ai">Tell me about {topic}</query></component>
</application>`
		app := parseOne(t, src).(*ast.Application)
		_, ok := app.Components[0].Statements[0].(*ast.LLMGenerate)
		assert.True(t, ok)
	})
}

func TestParseInvoke(t *testing.T) {
	t.Run("single target", func(t *testing.T) {
		src := `<component name="C"><invoke name="r" function="calc"><param name="a" value="1"/></invoke></component>`
		c := parseOne(t, src).(*ast.Component)
		inv := c.Statements[0].(*ast.Invoke)
		assert.Equal(t, "function", inv.TargetKind())
		assert.Equal(t, "1", inv.Params["a"])
	})

	t.Run("two targets rejected", func(t *testing.T) {
		err := parseErr(t, `<component name="C"><invoke name="r" function="calc" url="http://x"/></component>`)
		assert.Contains(t, err.Error(), "ambiguous target")
	})

	t.Run("no target rejected", func(t *testing.T) {
		err := parseErr(t, `<component name="C"><invoke name="r"/></component>`)
		assert.Contains(t, err.Error(), "requires exactly one of")
	})
}

func TestClassification(t *testing.T) {
	reg := New()
	pc := newParseContext("test.ltc", reg)

	parseTag := func(t *testing.T, frag string) ast.Node {
		t.Helper()
		doc := etree.NewDocument()
		require.NoError(t, doc.ReadFromString(frag))
		node, err := reg.Parse(pc, doc.Root())
		require.NoError(t, err)
		return node
	}

	t.Run("uppercase initial is a component call", func(t *testing.T) {
		node := parseTag(t, `<UserCard user="{current}" compact="true"/>`)
		call, ok := node.(*ast.ComponentCall)
		require.True(t, ok)
		assert.Equal(t, "UserCard", call.Component)
		assert.Equal(t, "{current}", call.Args["user"])
	})

	t.Run("known html passes through", func(t *testing.T) {
		node := parseTag(t, `<div class="row">hello {name}</div>`)
		h, ok := node.(*ast.HTML)
		require.True(t, ok)
		assert.Equal(t, "div", h.Tag)
		require.Len(t, h.Children, 1)
		assert.Equal(t, "hello {name}", h.Children[0].(*ast.Text).Value)
	})

	t.Run("unknown lowercase passes through", func(t *testing.T) {
		node := parseTag(t, `<custom-widget id="w"/>`)
		_, ok := node.(*ast.HTML)
		assert.True(t, ok)
	})

	t.Run("all-uppercase is skipped", func(t *testing.T) {
		node := parseTag(t, `<LEGACY/>`)
		assert.Nil(t, node)
	})
}

func TestParseSchedule(t *testing.T) {
	t.Run("cron", func(t *testing.T) {
		src := `<component name="C"><schedule name="sync" cron="0 * * * *" priority="low"><set name="x" value="1"/></schedule></component>`
		c := parseOne(t, src).(*ast.Component)
		s := c.Statements[0].(*ast.Schedule)
		assert.Equal(t, "0 * * * *", s.Cron)
		assert.Equal(t, "low", s.Priority)
	})

	t.Run("cron and every rejected", func(t *testing.T) {
		err := parseErr(t, `<component name="C"><schedule name="s" cron="@hourly" every="5m"><set name="x" value="1"/></schedule></component>`)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})
}

func TestParseErrors(t *testing.T) {
	t.Run("missing required attribute", func(t *testing.T) {
		err := parseErr(t, `<component name="C"><set value="1"/></component>`)
		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "set", perr.Tag)
		assert.Equal(t, "name", perr.Attr)
	})

	t.Run("bad integer attribute", func(t *testing.T) {
		err := parseErr(t, `<component name="C"><set name="x" ttl="soon"/></component>`)
		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "ttl", perr.Attr)
		assert.Contains(t, err.Error(), `invalid integer "soon"`)
	})

	t.Run("malformed document", func(t *testing.T) {
		err := parseErr(t, `<component name="C"><set name="x"`)
		assert.Contains(t, err.Error(), "malformed document")
	})

	t.Run("unsupported root", func(t *testing.T) {
		err := parseErr(t, `<div>hi</div>`)
		assert.Contains(t, err.Error(), "unsupported document root")
	})

	t.Run("error carries element path", func(t *testing.T) {
		err := parseErr(t, `<component name="C"><if condition="x"><set value="1"/></if></component>`)
		assert.True(t, strings.Contains(err.Error(), "/component/if/set"), err.Error())
	})
}

func TestParseTransaction(t *testing.T) {
	src := `
<application id="a">
  <datasource name="db" type="sqlite"/>
  <component name="C">
    <transaction datasource="db" isolation="serializable">
      <query name="debit" datasource="db"><sql>UPDATE accounts SET balance = balance - :amt WHERE id = :id</sql>
        <param name="amt" type="number"/>
        <param name="id" type="number"/>
      </query>
    </transaction>
  </component>
</application>`
	app := parseOne(t, src).(*ast.Application)
	tx := app.Components[0].Statements[0].(*ast.Transaction)
	assert.Equal(t, "db", tx.Datasource)
	assert.Equal(t, "serializable", tx.Isolation)
	require.Len(t, tx.Body, 1)
}

func TestParseData(t *testing.T) {
	src := `
<component name="C">
  <data name="prices" type="csv" columns="sku,price">
A1,10.5
B2,3.25
    <sort field="price" order="desc"/>
    <limit count="1"/>
  </data>
</component>`
	c := parseOne(t, src).(*ast.Component)
	d := c.Statements[0].(*ast.Data)
	assert.Equal(t, []string{"sku", "price"}, d.Columns)
	assert.Contains(t, d.Content, "A1,10.5")
	require.Len(t, d.Transforms, 2)
	assert.Equal(t, "sort", d.Transforms[0].TransKind)
	assert.Equal(t, 1, d.Transforms[1].Count)
}

func TestParseDataLimitNeedsCount(t *testing.T) {
	tests := []struct {
		name string
		attr string
	}{
		{"missing count", ""},
		{"zero count", ` count="0"`},
		{"negative count", ` count="-3"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `
<component name="C">
  <data name="rows" type="csv" columns="a">
1
    <limit` + tt.attr + `/>
  </data>
</component>`
			err := parseErr(t, src)
			assert.Contains(t, err.Error(), "count")
		})
	}
}
